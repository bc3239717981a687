// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package quickjsengine

import (
	"fmt"

	hostdispatch "github.com/buke/host-dispatch"
	"github.com/buke/quickjs-go"
)

// Engine is a script host backed by a QuickJS runtime.
// The runtime is created, used and freed on a dedicated host thread.
type Engine struct {
	*hostdispatch.Thread

	Runtime *quickjs.Runtime // QuickJS runtime instance, host thread only
	Ctx     *quickjs.Context // QuickJS context instance, host thread only
	Option  *EngineOption    // Engine configuration options

	memoryLimited bool // A memory limit was pushed into the runtime
}

var _ hostdispatch.ScriptHost = (*Engine)(nil)

// New starts a host thread and creates a QuickJS runtime on it.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		Option: &EngineOption{
			MemoryLimit:        0,     // Default memory limit (no limit)
			GCThreshold:        -1,    // Default GC threshold. -1 means no threshold
			Timeout:            0,     // Default timeout (no timeout)
			MaxStackSize:       0,     // Default max stack size
			CanBlock:           false, // Blocking not allowed by default
			EnableModuleImport: false, // Module import disabled by default
			Strip:              1,     // Default strip behavior
		},
	}

	e.Thread = hostdispatch.NewThread(
		hostdispatch.WithThreadName("quickjs"),
		hostdispatch.WithThreadInit(func() error {
			return e.init(opts)
		}),
		hostdispatch.WithThreadCleanup(e.release),
	)
	if err := e.Thread.Start(); err != nil {
		e.Thread.Stop()
		return nil, err
	}
	return e, nil
}

// init creates the runtime and applies options. It runs on the host thread.
func (e *Engine) init(opts []Option) error {
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return fmt.Errorf("failed to apply option: %w", err)
		}
	}

	e.Runtime = quickjs.NewRuntime()
	e.Ctx = e.Runtime.NewContext()
	e.configure()
	return nil
}

// Apply updates the configuration of a running engine on its host thread.
// If an option fails, none of them take effect.
func (e *Engine) Apply(opts ...Option) error {
	var optErr error
	if err := e.Send(func() {
		previous := *e.Option
		for _, opt := range opts {
			if optErr = opt(e); optErr != nil {
				*e.Option = previous
				return
			}
		}
		e.configure()
	}); err != nil {
		return err
	}
	return optErr
}

// Eval runs src in the context. It must be called on the host thread.
func (e *Engine) Eval(name, src string) (string, error) {
	if !e.OnHostThread() {
		return "", hostdispatch.ErrWrongThread
	}
	v := e.Ctx.Eval(src, quickjs.EvalFileName(name))
	defer v.Free()
	if v.IsException() {
		if err := e.Ctx.Exception(); err != nil {
			return "", fmt.Errorf("failed to evaluate %s: %w", name, err)
		}
		return "", fmt.Errorf("failed to evaluate %s: uncaught exception", name)
	}
	return v.String(), nil
}

// Close stops the host thread, which frees the context and runtime.
func (e *Engine) Close() error {
	e.Thread.Stop()
	return nil
}

// release frees the context and runtime. It runs on the host thread.
func (e *Engine) release() {
	if e.Ctx != nil {
		e.Ctx.Close()
		e.Ctx = nil
	}
	if e.Runtime != nil {
		e.Runtime.Close()
		e.Runtime = nil
	}
}
