//go:build !windows

// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package v8engine

import "fmt"

// Option configures a V8 engine before its isolate is created.
type Option func(*Engine) error

// EngineOption holds specific configurations for the V8 engine.
type EngineOption struct {
	Prelude string // Script run once when the context is created
}

// WithPrelude sets a script run on the host thread when the context is created,
// typically to install a starting document. The script must not be empty.
func WithPrelude(script string) Option {
	return func(e *Engine) error {
		if script == "" {
			return fmt.Errorf("prelude script cannot be empty")
		}
		e.Option.Prelude = script
		return nil
	}
}
