// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package quickjsengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	engine, err := New()
	require.NoError(t, err)
	defer engine.Close()

	require.Equal(t, int64(-1), engine.Option.GCThreshold)
	require.Equal(t, 1, engine.Option.Strip)
	require.False(t, engine.Option.CanBlock)
}

func TestWithGCThreshold(t *testing.T) {
	engine, err := New()
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.Apply(WithGCThreshold(1024)))
	require.Equal(t, int64(1024), engine.Option.GCThreshold)

	require.NoError(t, engine.Apply(WithGCThreshold(-1)))
	require.Equal(t, int64(-1), engine.Option.GCThreshold)

	// Invalid value leaves the configuration untouched
	require.Error(t, engine.Apply(WithGCThreshold(512), WithGCThreshold(-2)))
	require.Equal(t, int64(-1), engine.Option.GCThreshold)
}

// evalOnThread evaluates src on the engine's host thread.
func evalOnThread(t *testing.T, engine *Engine, src string) (string, error) {
	t.Helper()
	var (
		result  string
		evalErr error
	)
	require.NoError(t, engine.Send(func() {
		result, evalErr = engine.Eval("options.js", src)
	}))
	return result, evalErr
}

func TestWithMemoryLimit(t *testing.T) {
	engine, err := New(WithMemoryLimit(64 * 1024 * 1024))
	require.NoError(t, err)
	defer engine.Close()

	require.Equal(t, uint64(64*1024*1024), engine.Option.MemoryLimit)
	result, err := evalOnThread(t, engine, "1 + 2")
	require.NoError(t, err)
	require.Equal(t, "3", result)

	// 0 = no limit
	require.NoError(t, engine.Apply(WithMemoryLimit(0)))
	require.Equal(t, uint64(0), engine.Option.MemoryLimit)
	result, err = evalOnThread(t, engine, `"x".repeat(1 << 24).length`)
	require.NoError(t, err)
	require.Equal(t, "16777216", result)
}

func TestWithMemoryLimit_ZeroOnDefaultEngine(t *testing.T) {
	engine, err := New()
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.Apply(WithMemoryLimit(0)))
	result, err := evalOnThread(t, engine, "1 + 2")
	require.NoError(t, err)
	require.Equal(t, "3", result)
}

func TestWithTimeout(t *testing.T) {
	engine, err := New(WithTimeout(5))
	require.NoError(t, err)
	defer engine.Close()

	require.Equal(t, uint64(5), engine.Option.Timeout)
}

func TestWithMaxStackSize(t *testing.T) {
	engine, err := New()
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.Apply(WithMaxStackSize(1024*1024)))
	require.Equal(t, uint64(1024*1024), engine.Option.MaxStackSize)

	// 0 = default
	require.NoError(t, engine.Apply(WithMaxStackSize(0)))
	require.Equal(t, uint64(0), engine.Option.MaxStackSize)
}

func TestWithCanBlock(t *testing.T) {
	engine, err := New(WithCanBlock(true))
	require.NoError(t, err)
	defer engine.Close()

	require.True(t, engine.Option.CanBlock)

	require.NoError(t, engine.Apply(WithCanBlock(false)))
	require.False(t, engine.Option.CanBlock)
}

func TestWithEnableModuleImport(t *testing.T) {
	engine, err := New(WithEnableModuleImport(true))
	require.NoError(t, err)
	defer engine.Close()

	require.True(t, engine.Option.EnableModuleImport)

	require.NoError(t, engine.Apply(WithEnableModuleImport(false)))
	require.False(t, engine.Option.EnableModuleImport)
}

func TestWithStrip(t *testing.T) {
	engine, err := New()
	require.NoError(t, err)
	defer engine.Close()

	for _, level := range []int{0, 1, 2} {
		require.NoError(t, engine.Apply(WithStrip(level)))
		require.Equal(t, level, engine.Option.Strip)
	}

	// Invalid values
	require.Error(t, engine.Apply(WithStrip(-1)))
	require.Error(t, engine.Apply(WithStrip(3)))
}

func TestWithMemoryLimit_Enforced(t *testing.T) {
	engine, err := New(WithMemoryLimit(4 * 1024 * 1024))
	require.NoError(t, err)
	defer engine.Close()

	_, err = evalOnThread(t, engine, `"x".repeat(1 << 24).length`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to evaluate options.js")
	require.NotContains(t, err.Error(), "%!w")
}
