// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package gojaengine

import (
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
)

// Option configures a Goja engine.
type Option func(*Engine) error

// EngineOption holds configuration for a Goja engine instance.
type EngineOption struct {
	MaxCallStackSize int
	EnableConsole    bool
	EnableRequire    bool
	FieldNameMapper  goja.FieldNameMapper
}

// onLoop runs fn with the runtime on the event loop and waits for it.
func (e *Engine) onLoop(fn func(vm *goja.Runtime)) error {
	return e.Send(func() {
		fn(e.vm)
	})
}

// WithMaxCallStackSize sets the maximum call stack size for the runtime.
// A value of 0 or less means no limit.
func WithMaxCallStackSize(size int) Option {
	return func(e *Engine) error {
		e.Option.MaxCallStackSize = size
		return e.onLoop(func(vm *goja.Runtime) {
			vm.SetMaxCallStackSize(size)
		})
	}
}

// WithEnableConsole enables the console object (console.log, etc.) in the JS runtime.
// It enables require() as well, which console depends on.
func WithEnableConsole() Option {
	return func(e *Engine) error {
		e.Option.EnableConsole = true
		e.Option.EnableRequire = true
		return e.onLoop(func(vm *goja.Runtime) {
			if _, ok := goja.AssertFunction(vm.Get("require")); !ok {
				new(require.Registry).Enable(vm)
			}
			console.Enable(vm)
		})
	}
}

// WithRequire enables the require() function for loading CommonJS modules.
func WithRequire() Option {
	return func(e *Engine) error {
		e.Option.EnableRequire = true
		return e.onLoop(func(vm *goja.Runtime) {
			new(require.Registry).Enable(vm)
		})
	}
}

// WithFieldNameMapper sets the field name mapper for Go-to-JS struct conversions.
// A nil mapper keeps the current one.
func WithFieldNameMapper(mapper goja.FieldNameMapper) Option {
	return func(e *Engine) error {
		if mapper == nil {
			return nil
		}
		e.Option.FieldNameMapper = mapper
		return e.onLoop(func(vm *goja.Runtime) {
			vm.SetFieldNameMapper(mapper)
		})
	}
}
