// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package quickjsengine

import (
	"fmt"
	"math"
)

// noMemoryLimit lifts a previously applied limit. quickjs-go reads 0 as a zero-byte limit.
const noMemoryLimit = math.MaxInt64

// Option changes the engine configuration. The runtime picks up the result
// when the engine starts or when Apply is called.
type Option func(*Engine) error

// EngineOption holds configuration options for a QuickJS engine instance.
type EngineOption struct {
	Timeout            uint64 `json:"timeout"`            // Script execution timeout in seconds (0 = no timeout)
	MemoryLimit        uint64 `json:"memoryLimit"`        // Memory limit in bytes (0 = no limit)
	GCThreshold        int64  `json:"gcThreshold"`        // GC threshold in bytes (-1 = disable, 0 = default)
	MaxStackSize       uint64 `json:"maxStackSize"`       // Stack size in bytes (0 = default)
	CanBlock           bool   `json:"canBlock"`           // Whether the runtime can block (for async operations)
	EnableModuleImport bool   `json:"enableModuleImport"` // Enable ES6 module import support
	Strip              int    `json:"strip"`              // Strip level for bytecode compilation
}

// configure pushes the configuration into the runtime. It runs on the host thread.
func (e *Engine) configure() {
	o := e.Option
	e.Runtime.SetGCThreshold(o.GCThreshold)
	switch {
	case o.MemoryLimit > 0:
		e.Runtime.SetMemoryLimit(o.MemoryLimit)
		e.memoryLimited = true
	case e.memoryLimited:
		e.Runtime.SetMemoryLimit(noMemoryLimit)
		e.memoryLimited = false
	}
	if o.Timeout > 0 {
		e.Runtime.SetExecuteTimeout(o.Timeout)
	}
	e.Runtime.SetCanBlock(o.CanBlock)
	e.Runtime.SetModuleImport(o.EnableModuleImport)
	e.Runtime.SetStripInfo(o.Strip)
	if o.MaxStackSize > 0 {
		e.Runtime.SetMaxStackSize(o.MaxStackSize)
	}
}

// WithGCThreshold sets the garbage collection threshold.
// -1 disables automatic GC and 0 keeps the runtime default.
func WithGCThreshold(threshold int64) Option {
	return func(e *Engine) error {
		if threshold < -1 {
			return fmt.Errorf("invalid GC threshold: %d", threshold)
		}
		e.Option.GCThreshold = threshold
		return nil
	}
}

// WithMemoryLimit caps runtime memory in bytes; 0 removes the cap.
func WithMemoryLimit(limit uint64) Option {
	return func(e *Engine) error {
		e.Option.MemoryLimit = limit
		return nil
	}
}

// WithTimeout interrupts scripts running longer than timeout seconds; 0 disables it.
func WithTimeout(timeout uint64) Option {
	return func(e *Engine) error {
		e.Option.Timeout = timeout
		return nil
	}
}

// WithMaxStackSize sets the runtime stack size in bytes.
func WithMaxStackSize(size uint64) Option {
	return func(e *Engine) error {
		e.Option.MaxStackSize = size
		return nil
	}
}

// WithCanBlock enables or disables blocking operations in the runtime.
func WithCanBlock(canBlock bool) Option {
	return func(e *Engine) error {
		e.Option.CanBlock = canBlock
		return nil
	}
}

// WithEnableModuleImport enables or disables ES6 module import support.
func WithEnableModuleImport(enable bool) Option {
	return func(e *Engine) error {
		e.Option.EnableModuleImport = enable
		return nil
	}
}

// WithStrip sets how much debug information compiled bytecode keeps (0 to 2).
func WithStrip(strip int) Option {
	return func(e *Engine) error {
		if strip < 0 || strip > 2 {
			return fmt.Errorf("invalid strip level: %d", strip)
		}
		e.Option.Strip = strip
		return nil
	}
}
