// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package hostdispatch

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/buke/host-dispatch/internal/goid"
)

// threadJob is a raised handler or a Send call waiting for the thread.
type threadJob struct {
	fn   func()     // Function to run on the thread
	done chan error // Completion for Send; nil for raised handlers
}

// Thread is a designated host thread: a goroutine locked to its OS thread
// that runs raised handlers and Send calls one at a time, in arrival order.
// It implements Host and is the home of runtimes that must never migrate
// between threads.
type Thread struct {
	name    string       // Human-readable name for the thread
	logger  *slog.Logger // Logger instance, nil disables logging
	init    func() error // Runs on the thread before any job
	cleanup func()       // Runs on the thread when it exits

	mu   sync.Mutex
	jobs []*threadJob // Pending jobs, FIFO

	wake    chan struct{} // Signals that jobs are pending
	quit    chan struct{} // Closed by Stop
	stopped chan struct{} // Closed when the loop exits
	initCh  chan error    // Reports init completion

	id        atomic.Uint64 // Goroutine id of the loop, 0 until running
	processed atomic.Uint64 // Number of jobs run (atomic)

	lifecycle sync.Mutex // Guards started and stopping
	started   bool
	stopping  bool
	startOnce sync.Once
	startErr  error
}

// NewThread creates a thread. Call Start to run it.
func NewThread(opts ...func(*Thread)) *Thread {
	t := &Thread{
		name:    "host",
		logger:  slog.Default(),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		initCh:  make(chan error, 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithThreadName sets the name used in logs.
func WithThreadName(name string) func(*Thread) {
	return func(t *Thread) {
		if name != "" {
			t.name = name
		}
	}
}

// WithThreadLogger configures the logger. A nil logger disables logging.
func WithThreadLogger(logger *slog.Logger) func(*Thread) {
	return func(t *Thread) {
		t.logger = logger
	}
}

// WithThreadInit sets a function run on the thread before it services jobs.
// An error aborts Start.
func WithThreadInit(fn func() error) func(*Thread) {
	return func(t *Thread) {
		t.init = fn
	}
}

// WithThreadCleanup sets a function run on the thread when it exits.
func WithThreadCleanup(fn func()) func(*Thread) {
	return func(t *Thread) {
		t.cleanup = fn
	}
}

// Name returns the thread name.
func (t *Thread) Name() string {
	return t.name
}

// Processed returns the number of jobs the thread has run.
func (t *Thread) Processed() uint64 {
	return t.processed.Load()
}

// Start launches the thread and waits for its init function.
// Calling Start again returns the first result.
func (t *Thread) Start() error {
	t.startOnce.Do(func() {
		t.lifecycle.Lock()
		if t.stopping {
			t.lifecycle.Unlock()
			t.startErr = ErrThreadStopped
			return
		}
		t.started = true
		go t.run()
		t.lifecycle.Unlock()

		if err := <-t.initCh; err != nil {
			t.startErr = fmt.Errorf("failed to start host thread %s: %w", t.name, err)
		}
	})
	return t.startErr
}

// Stop terminates the loop after the job in progress and waits for it to exit.
// Pending Send calls return ErrThreadStopped; pending raised handlers are dropped.
// Called from the thread itself, Stop returns without waiting.
func (t *Thread) Stop() {
	t.lifecycle.Lock()
	if !t.stopping {
		t.stopping = true
		close(t.quit)
		if !t.started {
			close(t.stopped)
		}
	}
	t.lifecycle.Unlock()

	if t.OnHostThread() {
		return
	}
	<-t.stopped
}

// OnHostThread reports whether the caller runs on this thread.
func (t *Thread) OnHostThread() bool {
	id := t.id.Load()
	return id != 0 && id == goid.Get()
}

// Raise queues handler to run on the thread. It never blocks.
// After Stop the handler is dropped.
func (t *Thread) Raise(handler func()) {
	select {
	case <-t.quit:
		if t.logger != nil {
			t.logger.Debug("Raise on stopped host thread ignored", "thread", t.name)
		}
		return
	default:
	}
	t.enqueue(&threadJob{fn: handler})
}

// Send runs fn on the thread and waits for it to return.
// On the thread itself fn runs inline. A panic in fn is returned as *PanicError.
func (t *Thread) Send(fn func()) error {
	call := func() error {
		fn()
		return nil
	}
	if t.OnHostThread() {
		return guard(call)
	}

	select {
	case <-t.quit:
		return ErrThreadStopped
	default:
	}

	job := &threadJob{fn: fn, done: make(chan error, 1)}
	t.enqueue(job)

	select {
	case err := <-job.done:
		return err
	case <-t.stopped:
		select {
		case err := <-job.done:
			return err
		default:
			return ErrThreadStopped
		}
	}
}

// enqueue appends a job and wakes the loop.
func (t *Thread) enqueue(job *threadJob) {
	t.mu.Lock()
	t.jobs = append(t.jobs, job)
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// next pops the oldest pending job.
func (t *Thread) next() (*threadJob, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.jobs) == 0 {
		return nil, false
	}
	job := t.jobs[0]
	t.jobs[0] = nil
	t.jobs = t.jobs[1:]
	return job, true
}

// run is the thread loop.
func (t *Thread) run() {
	// Lock this goroutine to an OS thread; runtimes bound here must never migrate
	runtime.LockOSThread()

	defer close(t.stopped)
	t.id.Store(goid.Get())

	if t.init != nil {
		if err := guard(t.init); err != nil {
			if t.logger != nil {
				t.logger.Error("Failed to initialize host thread",
					"thread", t.name,
					"error", err)
			}
			t.initCh <- err
			return
		}
	}
	t.initCh <- nil

	defer t.exit()

	for {
		for {
			select {
			case <-t.quit:
				return
			default:
			}
			job, ok := t.next()
			if !ok {
				break
			}
			t.runJob(job)
		}

		select {
		case <-t.wake:
		case <-t.quit:
			return
		}
	}
}

// runJob runs a single job, recovering panics.
func (t *Thread) runJob(job *threadJob) {
	err := guard(func() error {
		job.fn()
		return nil
	})
	t.processed.Add(1)

	if job.done != nil {
		job.done <- err
		return
	}
	if err != nil && t.logger != nil {
		t.logger.Error("Raised handler panicked",
			"thread", t.name,
			"error", err)
	}
}

// exit fails pending Send calls and runs the cleanup function.
func (t *Thread) exit() {
	t.mu.Lock()
	pending := t.jobs
	t.jobs = nil
	t.mu.Unlock()

	for _, job := range pending {
		if job.done != nil {
			job.done <- ErrThreadStopped
		}
	}

	if t.cleanup != nil {
		if err := guard(func() error {
			t.cleanup()
			return nil
		}); err != nil && t.logger != nil {
			t.logger.Error("Host thread cleanup panicked",
				"thread", t.name,
				"error", err)
		}
	}

	if t.logger != nil {
		t.logger.Debug("Host thread stopped",
			"thread", t.name,
			"processed", t.processed.Load(),
			"dropped", len(pending))
	}
}
