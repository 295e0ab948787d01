package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirecap/wirecap/internal/filter"
	"github.com/wirecap/wirecap/internal/storage"
	"github.com/wirecap/wirecap/pkg/session"
)

func makeSession(url string, status int) session.Session {
	s := session.New(session.NewRequest(url, session.MethodGet))
	return s.Complete(session.Response{StatusCode: status, Timestamp: time.Now()})
}

func TestSaveAndLoad(t *testing.T) {
	st := New(Options{})
	defer st.Close()
	ctx := context.Background()

	s := makeSession("https://a.com/1", 200)
	require.NoError(t, st.Save(ctx, s))

	got, err := st.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.Equal(s))

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLoadMissing(t *testing.T) {
	st := New(Options{})
	defer st.Close()

	other := makeSession("https://a.com/", 200)
	_, err := st.Load(context.Background(), other.ID)
	assert.True(t, storage.IsNotFound(err))
}

func TestCapacityRejectsNewID(t *testing.T) {
	st := New(Options{MaxSessions: 2})
	defer st.Close()
	ctx := context.Background()

	a := makeSession("https://a.com/1", 200)
	b := makeSession("https://a.com/2", 200)
	require.NoError(t, st.Save(ctx, a))
	require.NoError(t, st.Save(ctx, b))

	// New ID at capacity: hard error, no eviction.
	err := st.Save(ctx, makeSession("https://a.com/3", 200))
	assert.True(t, storage.IsCapacity(err))

	n, _ := st.Count(ctx)
	assert.Equal(t, 2, n)

	// Update of an existing ID at capacity succeeds.
	updated := a.Retry()
	require.NoError(t, st.Save(ctx, updated))

	got, err := st.Load(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RetryCount)
}

func TestSaveAllPartialFailure(t *testing.T) {
	st := New(Options{MaxSessions: 2})
	defer st.Close()
	ctx := context.Background()

	batch := []session.Session{
		makeSession("https://a.com/1", 200),
		makeSession("https://a.com/2", 200),
		makeSession("https://a.com/3", 200),
	}
	err := st.SaveAll(ctx, batch)
	assert.True(t, storage.IsCapacity(err))

	// Writes before the failing element persist.
	n, _ := st.Count(ctx)
	assert.Equal(t, 2, n)
}

func TestLoadTouchesAccessTime(t *testing.T) {
	st := New(Options{})
	defer st.Close()
	ctx := context.Background()

	clock := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return clock }

	a := makeSession("https://a.com/1", 200)
	b := makeSession("https://a.com/2", 200)
	require.NoError(t, st.Save(ctx, a))
	clock = clock.Add(time.Minute)
	require.NoError(t, st.Save(ctx, b))

	// Read a later than b's save: a becomes the most recently accessed.
	clock = clock.Add(time.Minute)
	_, err := st.Load(ctx, a.ID)
	require.NoError(t, err)

	recent, err := st.RecentlyAccessed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].Equal(a))
}

func TestCleanupAgeUsesLastAccess(t *testing.T) {
	st := New(Options{RetentionPeriod: time.Hour})
	defer st.Close()
	ctx := context.Background()

	clock := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return clock }

	old := makeSession("https://a.com/old", 200)
	fresh := makeSession("https://a.com/fresh", 200)
	require.NoError(t, st.Save(ctx, old))
	require.NoError(t, st.Save(ctx, fresh))

	// Touch fresh two hours later; old's last access stays behind.
	clock = clock.Add(2 * time.Hour)
	_, err := st.Load(ctx, fresh.ID)
	require.NoError(t, err)

	removed, err := st.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = st.Load(ctx, old.ID)
	assert.True(t, storage.IsNotFound(err))
	_, err = st.Load(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestCleanupExcessUsesInsertionOrder(t *testing.T) {
	st := New(Options{})
	defer st.Close()
	ctx := context.Background()

	clock := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return clock }

	first := makeSession("https://a.com/1", 200)
	second := makeSession("https://a.com/2", 200)
	third := makeSession("https://a.com/3", 200)
	require.NoError(t, st.Save(ctx, first))
	require.NoError(t, st.Save(ctx, second))
	require.NoError(t, st.Save(ctx, third))

	// Access the oldest-inserted session so access order differs from
	// insertion order; the excess pass must still evict by insertion.
	clock = clock.Add(time.Minute)
	_, err := st.Load(ctx, first.ID)
	require.NoError(t, err)

	st.opts.MaxSessions = 2
	removed, err := st.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = st.Load(ctx, first.ID)
	assert.True(t, storage.IsNotFound(err), "oldest-inserted goes first even though recently accessed")
}

func TestDeleteMatching(t *testing.T) {
	st := New(Options{})
	defer st.Close()
	ctx := context.Background()

	require.NoError(t, st.SaveAll(ctx, []session.Session{
		makeSession("https://a.com/1", 200),
		makeSession("https://a.com/2", 404),
		makeSession("https://a.com/3", 404),
	}))

	n, err := st.DeleteMatching(ctx, filter.Where(filter.StatusIs(404)))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, _ := st.Count(ctx)
	assert.Equal(t, 1, left)
}

func TestLoadMatchingIndexFastPathAgreesWithScan(t *testing.T) {
	st := New(Options{})
	defer st.Close()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		status := 200
		if i%3 == 0 {
			status = 404
		}
		require.NoError(t, st.Save(ctx, makeSession("https://a.com/x", status)))
	}

	indexed := filter.Where(filter.MethodIs(session.MethodGet)).And(filter.StatusIs(404))
	viaIndex, err := st.LoadMatching(ctx, indexed)
	require.NoError(t, err)

	// Equivalent criteria that cannot be planned (OR chain) forces a scan.
	scan := filter.Where(filter.StatusIs(404)).Or(filter.StatusIs(404))
	viaScan, err := st.LoadMatching(ctx, scan)
	require.NoError(t, err)

	assert.Equal(t, len(viaScan), len(viaIndex))
}

func TestLoadAllSortedByStartDesc(t *testing.T) {
	st := New(Options{})
	defer st.Close()
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		s := makeSession("https://a.com/x", 200)
		s.StartTime = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, st.Save(ctx, s))
	}

	all, err := st.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].StartTime.After(all[1].StartTime))
	assert.True(t, all[1].StartTime.After(all[2].StartTime))
}

func TestConcurrentSavesNeverOverfill(t *testing.T) {
	st := New(Options{MaxSessions: 5})
	defer st.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.Save(ctx, makeSession("https://a.com/x", 200))
		}()
	}
	wg.Wait()

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestStorageSizeGrows(t *testing.T) {
	st := New(Options{})
	defer st.Close()
	ctx := context.Background()

	empty, err := st.StorageSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty)

	s := makeSession("https://a.com/big", 200)
	s.Request.Body = make([]byte, 4096)
	require.NoError(t, st.Save(ctx, s))

	sized, err := st.StorageSize(ctx)
	require.NoError(t, err)
	assert.Greater(t, sized, int64(4096))
}
