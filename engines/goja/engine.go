// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package gojaengine

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	hostdispatch "github.com/buke/host-dispatch"
	"github.com/buke/host-dispatch/internal/goid"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
)

// Engine is a script host backed by a Goja runtime.
// The event loop goroutine is the designated thread: it owns the runtime,
// and every raised handler and Send call runs there.
type Engine struct {
	Loop   *eventloop.EventLoop // The event loop that owns and serializes access to the runtime.
	Option *EngineOption        // Engine configuration options.

	vm      *goja.Runtime // Captured on the loop; only used there
	loopID  atomic.Uint64 // Goroutine id of the loop
	closed  atomic.Bool
	closeMu sync.Mutex
	stopped chan struct{} // Closed by Close
}

var _ hostdispatch.ScriptHost = (*Engine)(nil)

// New creates a Goja host and starts its event loop.
func New(opts ...Option) (*Engine, error) {
	loop := eventloop.NewEventLoop()

	e := &Engine{
		Loop:    loop,
		Option:  &EngineOption{}, // Initialize with default options
		stopped: make(chan struct{}),
	}

	loop.Start()

	// Bind the runtime and the loop identity before anything else runs on it.
	ready := make(chan struct{})
	loop.RunOnLoop(func(vm *goja.Runtime) {
		e.vm = vm
		e.loopID.Store(goid.Get())
		close(ready)
	})
	<-ready

	// The default mapper can be overridden by user-provided options.
	WithFieldNameMapper(goja.TagFieldNameMapper("json", true))(e)

	for _, opt := range opts {
		if err := opt(e); err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	return e, nil
}

// OnHostThread reports whether the caller runs on the event loop.
func (e *Engine) OnHostThread() bool {
	id := e.loopID.Load()
	return id != 0 && id == goid.Get()
}

// Raise schedules handler on the event loop. Handlers raised after Close are dropped.
func (e *Engine) Raise(handler func()) {
	if e.closed.Load() {
		return
	}
	e.Loop.RunOnLoop(func(*goja.Runtime) {
		handler()
	})
}

// Send runs fn on the event loop and waits for it.
func (e *Engine) Send(fn func()) error {
	if e.OnHostThread() {
		return recoverPanic(fn)
	}
	if e.closed.Load() {
		return hostdispatch.ErrThreadStopped
	}

	done := make(chan error, 1)
	e.Loop.RunOnLoop(func(*goja.Runtime) {
		done <- recoverPanic(fn)
	})
	select {
	case err := <-done:
		return err
	case <-e.stopped:
		return hostdispatch.ErrThreadStopped
	}
}

// Eval runs src in the runtime. It must be called on the event loop.
func (e *Engine) Eval(name, src string) (string, error) {
	if !e.OnHostThread() {
		return "", hostdispatch.ErrWrongThread
	}
	v, err := e.vm.RunScript(name, src)
	if err != nil {
		return "", fmt.Errorf("failed to evaluate %s: %w", name, err)
	}
	if v == nil {
		return "undefined", nil
	}
	return v.String(), nil
}

// Runtime returns the Goja runtime. It must only be used on the event loop.
func (e *Engine) Runtime() *goja.Runtime {
	return e.vm
}

// Close stops the event loop and releases associated resources.
// It must not be called from the event loop.
func (e *Engine) Close() error {
	if e.OnHostThread() {
		return hostdispatch.ErrWrongThread
	}
	e.closeMu.Lock()
	defer e.closeMu.Unlock()
	if e.closed.Swap(true) {
		return nil
	}
	close(e.stopped)
	if e.Loop != nil {
		e.Loop.Stop()
	}
	return nil
}

// recoverPanic calls fn and returns a recovered panic as *hostdispatch.PanicError.
func recoverPanic(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &hostdispatch.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	fn()
	return nil
}
