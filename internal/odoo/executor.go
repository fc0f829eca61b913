package odoo

import (
	"context"
	"fmt"

	"github.com/panjf2000/ants/v2"
)

// Executor runs blocking remote calls off the caller's goroutine.
// Do returns when fn finishes or ctx is done, whichever comes first; in the
// latter case fn keeps running to completion on the worker.
type Executor interface {
	Do(ctx context.Context, fn func() (any, error)) (any, error)
}

// PoolExecutor submits calls to a bounded ants worker pool.
type PoolExecutor struct {
	pool *ants.Pool
}

// NewPoolExecutor creates an executor backed by a pool of size workers.
// When the pool is saturated, submissions block until a worker frees up.
func NewPoolExecutor(size int) (*PoolExecutor, error) {
	if size <= 0 {
		return nil, fmt.Errorf("odoo: worker pool size must be greater than 0, got %d", size)
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("odoo: create worker pool: %w", err)
	}
	return &PoolExecutor{pool: pool}, nil
}

type callResult struct {
	value any
	err   error
}

// Do implements Executor.
func (e *PoolExecutor) Do(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := make(chan callResult, 1)
	if err := e.pool.Submit(func() { done <- runGuarded(fn) }); err != nil {
		return nil, fmt.Errorf("odoo: submit call: %w", err)
	}
	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Running returns the number of workers currently executing a call.
func (e *PoolExecutor) Running() int {
	return e.pool.Running()
}

// Close releases the pool. Calls already running finish in the background.
func (e *PoolExecutor) Close() {
	e.pool.Release()
}

// InlineExecutor runs calls on the caller's goroutine. Used in tests and
// wherever a worker hop buys nothing.
type InlineExecutor struct{}

// Do implements Executor.
func (InlineExecutor) Do(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := runGuarded(fn)
	return r.value, r.err
}

func runGuarded(fn func() (any, error)) (r callResult) {
	defer func() {
		if p := recover(); p != nil {
			r = callResult{err: fmt.Errorf("odoo: remote call panicked: %v", p)}
		}
	}()
	v, err := fn()
	return callResult{value: v, err: err}
}
