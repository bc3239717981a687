// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package hostdispatch

import (
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Dispatcher marshals work from any goroutine onto a host's designated thread
// and runs each item inside a transaction.
//
// Submit may be called concurrently. RunNext runs on the designated thread,
// once per wake-up signal raised by Submit.
type Dispatcher struct {
	name         string              // Name used in logs and metrics
	host         Host                // Host owning the designated thread
	transactions TransactionProvider // Default provider for Submit
	queue        *workQueue          // Pending work, FIFO

	mu     sync.RWMutex // Orders Submit against Close
	closed bool

	logger  *slog.Logger // Logger instance, nil disables logging
	metrics Metrics      // Metrics sink
}

// NewDispatcher creates a dispatcher bound to a host.
func NewDispatcher(opts ...func(*Dispatcher)) (*Dispatcher, error) {
	d := &Dispatcher{
		name:    "dispatcher",
		queue:   newWorkQueue(),
		logger:  slog.Default(),
		metrics: NilMetrics{},
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.host == nil {
		return nil, ErrHostRequired
	}

	if d.logger != nil {
		d.logger.Debug("Dispatcher created", "name", d.name)
	}
	return d, nil
}

// WithHost configures the host whose designated thread runs the work.
func WithHost(host Host) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.host = host
	}
}

// WithTransactions configures the transaction provider used by Submit.
func WithTransactions(tx TransactionProvider) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.transactions = tx
	}
}

// WithLogger configures the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMetrics configures the metrics sink.
func WithMetrics(metrics Metrics) func(*Dispatcher) {
	return func(d *Dispatcher) {
		if metrics != nil {
			d.metrics = metrics
		}
	}
}

// WithName sets the name used in logs and metrics.
func WithName(name string) func(*Dispatcher) {
	return func(d *Dispatcher) {
		if name != "" {
			d.name = name
		}
	}
}

// Name returns the dispatcher name.
func (d *Dispatcher) Name() string {
	return d.name
}

// Host returns the host the dispatcher is bound to.
func (d *Dispatcher) Host() Host {
	return d.host
}

// Pending returns the number of queued work items.
func (d *Dispatcher) Pending() int {
	return d.queue.len()
}

// Submit queues work to run in a transaction from the default provider.
// See SubmitTo.
func (d *Dispatcher) Submit(work Work, label string) *Future {
	return d.SubmitTo(d.transactions, work, label)
}

// SubmitTo queues work to run on the designated thread inside a transaction
// opened against tx, and raises one wake-up signal. It never blocks.
//
// The returned future resolves to nil once work returned and the transaction
// committed, or to a *WorkError wrapping the failure.
func (d *Dispatcher) SubmitTo(tx TransactionProvider, work Work, label string) *Future {
	if work == nil {
		return d.reject(label, ErrNilWork, "nil_work")
	}
	if tx == nil {
		return d.reject(label, ErrNoTransactions, "no_transactions")
	}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return d.reject(label, ErrDispatcherClosed, "closed")
	}
	item := newWorkItem(work, label, tx, d.host.OnHostThread)
	d.queue.push(item)
	d.mu.RUnlock()

	d.metrics.RecordQueueDepth(d.name, d.queue.len())
	d.host.Raise(d.service)
	return item.future
}

// reject returns a future that failed before being queued.
func (d *Dispatcher) reject(label string, err error, reason string) *Future {
	d.metrics.RecordWorkRejected(d.name, reason)
	return rejectedFuture(label, err)
}

// service is the handler raised on the host for each submission.
func (d *Dispatcher) service() {
	_ = d.RunNext()
}

// RunNext executes the work item at the head of the queue.
// It must be called on the designated thread; elsewhere it returns ErrWrongThread
// and leaves the queue untouched. An empty queue is a no-op.
//
// Failures of the work or its transaction are delivered to the item's future,
// never returned from RunNext.
func (d *Dispatcher) RunNext() error {
	if !d.host.OnHostThread() {
		if d.logger != nil {
			d.logger.Error("RunNext called off the designated thread",
				"dispatcher", d.name,
				"pending", d.queue.len())
		}
		return ErrWrongThread
	}

	item, ok := d.queue.pop()
	if !ok {
		return nil
	}
	d.metrics.RecordQueueDepth(d.name, d.queue.len())

	d.execute(item)
	return nil
}

// execute runs one item and resolves its future.
func (d *Dispatcher) execute(item *workItem) {
	start := time.Now()

	err := d.runInTransaction(item)

	d.metrics.RecordWorkDuration(d.name, time.Since(start))
	var workErr *WorkError
	if errors.As(err, &workErr) {
		d.metrics.RecordWorkFailure(d.name, workErr.Stage)
	}

	item.complete(err)

	if d.logger != nil {
		d.logger.Debug("Work completed",
			"dispatcher", d.name,
			"id", item.id,
			"label", item.label,
			"failed", err != nil,
			"elapsed", time.Since(start))
	}
}

// runInTransaction begins a transaction, runs the work and commits.
// The transaction is rolled back on every path that does not commit.
func (d *Dispatcher) runInTransaction(item *workItem) error {
	var tx Transaction
	err := guard(func() error {
		var err error
		tx, err = item.transactions.Begin(item.label)
		return err
	})
	if err != nil {
		return item.fail(StageBegin, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := guard(tx.Rollback); err != nil && d.logger != nil {
			d.logger.Warn("Transaction rollback failed",
				"dispatcher", d.name,
				"id", item.id,
				"label", item.label,
				"error", err)
		}
	}()

	if err := guard(item.work); err != nil {
		return item.fail(StageWork, err)
	}
	if err := guard(tx.Commit); err != nil {
		return item.fail(StageCommit, err)
	}
	committed = true
	return nil
}

// fail wraps err as the item's WorkError.
func (w *workItem) fail(stage Stage, err error) error {
	return &WorkError{ID: w.id, Label: w.label, Stage: stage, Err: err}
}

// guard calls fn and converts a panic into a *PanicError.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// Close rejects all queued work with ErrDispatcherClosed and refuses new submissions.
// Work already running completes normally. Close is idempotent.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	items := d.queue.drain()
	d.mu.Unlock()

	for _, item := range items {
		item.complete(ErrDispatcherClosed)
	}
	d.metrics.RecordQueueDepth(d.name, 0)

	if d.logger != nil {
		d.logger.Debug("Dispatcher closed",
			"dispatcher", d.name,
			"rejected", len(items))
	}
	return nil
}
