package storage

import (
	"context"
	"sync"

	"github.com/wirecap/wirecap/internal/errdef"
)

// Worker is the single serial executor owned by a provider instance. All
// operations funnel through one goroutine, which makes check-then-act
// sequences (like the memory provider's capacity check) atomic without a
// separate lock.
type Worker struct {
	jobs chan func()
	quit chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewWorker starts the worker goroutine.
func NewWorker() *Worker {
	w := &Worker{
		jobs: make(chan func()),
		quit: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case fn := <-w.jobs:
			fn()
		case <-w.quit:
			return
		}
	}
}

// Close stops the worker after the in-flight job, if any. Subsequent
// submissions fail. Safe to call more than once.
func (w *Worker) Close() error {
	w.once.Do(func() { close(w.quit) })
	w.wg.Wait()
	return nil
}

type result[T any] struct {
	val T
	err error
}

// Run executes fn on the worker and waits for its result. The wait honors
// ctx cancellation, but a job that has been accepted always runs to
// completion so the instance stays linearizable.
func Run[T any](ctx context.Context, w *Worker, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	done := make(chan result[T], 1)
	job := func() {
		val, err := fn()
		done <- result[T]{val: val, err: err}
	}

	select {
	case w.jobs <- job:
	case <-w.quit:
		return zero, errdef.New(errdef.CodeUnknown, "storage worker closed")
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// RunVoid is Run for operations without a result value.
func RunVoid(ctx context.Context, w *Worker, fn func() error) error {
	_, err := Run(ctx, w, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
