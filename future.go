// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package hostdispatch

import (
	"context"
	"sync/atomic"
)

// Future is the caller's half of a work item's completion handle.
// It resolves exactly once: to nil on commit, or to the error that failed the work.
type Future struct {
	id    string
	label string

	done     chan struct{}
	err      error
	resolved atomic.Bool

	onHostThread func() bool // Guards Wait against self-deadlock
}

// newFuture creates an unresolved future.
func newFuture(id, label string, onHostThread func() bool) *Future {
	return &Future{
		id:           id,
		label:        label,
		done:         make(chan struct{}),
		onHostThread: onHostThread,
	}
}

// rejectedFuture returns a future already resolved with err.
func rejectedFuture(label string, err error) *Future {
	if label == "" {
		label = DefaultLabel
	}
	f := newFuture("", label, nil)
	f.resolve(err)
	return f
}

// resolve settles the future. It returns false if it was already settled.
func (f *Future) resolve(err error) bool {
	if !f.resolved.CompareAndSwap(false, true) {
		return false
	}
	f.err = err
	close(f.done)
	return true
}

// ID returns the id of the work item. Empty for submissions rejected before queueing.
func (f *Future) ID() string {
	return f.id
}

// Label returns the transaction label of the work item.
func (f *Future) Label() string {
	return f.label
}

// Done returns a channel closed once the future is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Resolved reports whether the future has been resolved.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Err returns the result of a resolved future, or nil while it is pending.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the future resolves or ctx is done.
// On the designated thread an unresolved future returns ErrWaitOnHostThread immediately.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	default:
	}

	if f.onHostThread != nil && f.onHostThread() {
		return ErrWaitOnHostThread
	}

	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
