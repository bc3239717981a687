//go:build !windows

// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package v8engine

import (
	"fmt"

	hostdispatch "github.com/buke/host-dispatch"
	"github.com/tommie/v8go"
)

var (
	// Make these functions variables so they can be mocked in tests.
	v8NewIsolate = v8go.NewIsolate
	v8NewContext = v8go.NewContext
)

// Engine is a script host backed by a V8 isolate.
// The isolate is single-threaded; it is created, used and disposed on a
// dedicated host thread.
type Engine struct {
	*hostdispatch.Thread

	// Iso is the V8 Isolate. Host thread only.
	Iso *v8go.Isolate

	// Ctx is the V8 Context. Host thread only.
	Ctx *v8go.Context

	// Option holds the engine-specific configurations.
	Option *EngineOption
}

var _ hostdispatch.ScriptHost = (*Engine)(nil)

// New starts a host thread and creates a V8 isolate and context on it.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		Option: &EngineOption{},
	}

	// Apply user-provided options
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	e.Thread = hostdispatch.NewThread(
		hostdispatch.WithThreadName("v8"),
		hostdispatch.WithThreadInit(e.init),
		hostdispatch.WithThreadCleanup(e.release),
	)
	if err := e.Thread.Start(); err != nil {
		e.Thread.Stop()
		return nil, err
	}
	return e, nil
}

// init creates the isolate and context and runs the prelude. It runs on the host thread.
func (e *Engine) init() error {
	iso := v8NewIsolate()
	if iso == nil {
		return fmt.Errorf("failed to create v8 isolate")
	}
	e.Iso = iso

	ctx := v8NewContext(iso)
	if ctx == nil {
		e.release()
		return fmt.Errorf("failed to create v8 context")
	}
	e.Ctx = ctx

	if e.Option.Prelude != "" {
		if _, err := e.Ctx.RunScript(e.Option.Prelude, "prelude.js"); err != nil {
			e.release()
			return fmt.Errorf("failed to execute prelude: %w", err)
		}
	}
	return nil
}

// Eval runs src in the context. It must be called on the host thread.
func (e *Engine) Eval(name, src string) (string, error) {
	if !e.OnHostThread() {
		return "", hostdispatch.ErrWrongThread
	}
	v, err := e.Ctx.RunScript(src, name)
	if err != nil {
		return "", fmt.Errorf("failed to evaluate %s: %w", name, err)
	}
	return v.String(), nil
}

// Close stops the host thread, which disposes the context and isolate.
func (e *Engine) Close() error {
	e.Thread.Stop()
	return nil
}

// release disposes the context and isolate. It runs on the host thread.
func (e *Engine) release() {
	if e.Ctx != nil {
		e.Ctx.Close()
		e.Ctx = nil
	}
	if e.Iso != nil {
		e.Iso.Dispose()
		e.Iso = nil
	}
}
