// Package index maintains an in-memory inverted index over sessions using
// Roaring bitmaps. Providers use it to narrow candidates for AND-only
// exact-match criteria (method, status code, metadata keys) before
// verifying each candidate against the full predicate.
package index

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"

	"github.com/wirecap/wirecap/internal/filter"
	"github.com/wirecap/wirecap/pkg/session"
)

// docMeta remembers the keys a document was indexed under so it can be
// removed again.
type docMeta struct {
	id        uuid.UUID
	method    string
	status    int
	hasStatus bool
	metaKeys  []string
}

// Index is safe for concurrent use.
type Index struct {
	mu sync.RWMutex

	idToDoc   map[uuid.UUID]uint32
	docToMeta map[uint32]*docMeta
	nextDocID uint32

	all        *roaring.Bitmap
	idxMethod  map[string]*roaring.Bitmap
	idxStatus  map[int]*roaring.Bitmap
	idxMetaKey map[string]*roaring.Bitmap
}

// New creates an empty index.
func New() *Index {
	return &Index{
		idToDoc:    make(map[uuid.UUID]uint32),
		docToMeta:  make(map[uint32]*docMeta),
		all:        roaring.New(),
		idxMethod:  make(map[string]*roaring.Bitmap),
		idxStatus:  make(map[int]*roaring.Bitmap),
		idxMetaKey: make(map[string]*roaring.Bitmap),
	}
}

// Add indexes a session, replacing any previous entry for the same ID.
func (ix *Index) Add(s session.Session) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, exists := ix.idToDoc[s.ID]; exists {
		ix.removeLocked(s.ID)
	}

	docID := ix.nextDocID
	ix.nextDocID++

	meta := &docMeta{id: s.ID, method: string(s.Request.Method)}
	if s.Response != nil {
		meta.status = s.Response.StatusCode
		meta.hasStatus = true
	}
	for key := range s.Metadata {
		meta.metaKeys = append(meta.metaKeys, key)
	}

	ix.idToDoc[s.ID] = docID
	ix.docToMeta[docID] = meta
	ix.all.Add(docID)

	if meta.method != "" {
		addToBitmap(ix.idxMethod, meta.method, docID)
	}
	if meta.hasStatus {
		addToIntBitmap(ix.idxStatus, meta.status, docID)
	}
	for _, key := range meta.metaKeys {
		addToBitmap(ix.idxMetaKey, key, docID)
	}
}

// Remove drops a session from the index. Unknown IDs are a no-op.
func (ix *Index) Remove(id uuid.UUID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(id)
}

func (ix *Index) removeLocked(id uuid.UUID) {
	docID, exists := ix.idToDoc[id]
	if !exists {
		return
	}
	meta := ix.docToMeta[docID]

	ix.all.Remove(docID)
	if meta != nil {
		if meta.method != "" {
			removeFromBitmap(ix.idxMethod, meta.method, docID)
		}
		if meta.hasStatus {
			removeFromIntBitmap(ix.idxStatus, meta.status, docID)
		}
		for _, key := range meta.metaKeys {
			removeFromBitmap(ix.idxMetaKey, key, docID)
		}
	}
	delete(ix.docToMeta, docID)
	delete(ix.idToDoc, id)
}

// Clear empties the index.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.idToDoc = make(map[uuid.UUID]uint32)
	ix.docToMeta = make(map[uint32]*docMeta)
	ix.all = roaring.New()
	ix.idxMethod = make(map[string]*roaring.Bitmap)
	ix.idxStatus = make(map[int]*roaring.Bitmap)
	ix.idxMetaKey = make(map[string]*roaring.Bitmap)
	ix.nextDocID = 0
}

// Len reports the number of indexed sessions.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.idToDoc)
}

// Candidates intersects the bitmaps for a set of index hints and returns
// the matching session IDs. A hint with no bitmap yields an empty result.
func (ix *Index) Candidates(hints []filter.IndexHint) []uuid.UUID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	result := ix.all.Clone()
	for _, hint := range hints {
		var bm *roaring.Bitmap
		switch hint.Field {
		case filter.IndexMethod:
			bm = ix.idxMethod[hint.Str]
		case filter.IndexStatus:
			bm = ix.idxStatus[hint.Num]
		case filter.IndexMetadataKey:
			bm = ix.idxMetaKey[hint.Str]
		}
		if bm == nil {
			return nil
		}
		result = roaring.And(result, bm)
		if result.IsEmpty() {
			return nil
		}
	}

	ids := make([]uuid.UUID, 0, result.GetCardinality())
	iter := result.Iterator()
	for iter.HasNext() {
		if meta := ix.docToMeta[iter.Next()]; meta != nil {
			ids = append(ids, meta.id)
		}
	}
	return ids
}

func addToBitmap(index map[string]*roaring.Bitmap, key string, docID uint32) {
	bm, exists := index[key]
	if !exists {
		bm = roaring.New()
		index[key] = bm
	}
	bm.Add(docID)
}

func addToIntBitmap(index map[int]*roaring.Bitmap, key int, docID uint32) {
	bm, exists := index[key]
	if !exists {
		bm = roaring.New()
		index[key] = bm
	}
	bm.Add(docID)
}

func removeFromBitmap(index map[string]*roaring.Bitmap, key string, docID uint32) {
	if bm, exists := index[key]; exists {
		bm.Remove(docID)
		if bm.IsEmpty() {
			delete(index, key)
		}
	}
}

func removeFromIntBitmap(index map[int]*roaring.Bitmap, key int, docID uint32) {
	if bm, exists := index[key]; exists {
		bm.Remove(docID)
		if bm.IsEmpty() {
			delete(index, key)
		}
	}
}
