//go:build !windows

// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package v8engine

import (
	"errors"
	"testing"

	hostdispatch "github.com/buke/host-dispatch"
	"github.com/stretchr/testify/require"
	"github.com/tommie/v8go"
)

// TestNew tests the creation of a new V8 engine.
func TestNew(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		engine, err := New()
		require.NoError(t, err)
		require.NotNil(t, engine)
		require.False(t, engine.OnHostThread())
		require.NoError(t, engine.Close())
		require.Nil(t, engine.Iso)
		require.Nil(t, engine.Ctx)
	})

	t.Run("With Prelude", func(t *testing.T) {
		engine, err := New(WithPrelude("var greeting = 'hi';"))
		require.NoError(t, err)
		defer engine.Close()

		var (
			result  string
			evalErr error
		)
		require.NoError(t, engine.Send(func() {
			result, evalErr = engine.Eval("greeting.js", "greeting")
		}))
		require.NoError(t, evalErr)
		require.Equal(t, "hi", result)
	})

	t.Run("With Failing Option", func(t *testing.T) {
		expectedErr := errors.New("option failed")
		failingOption := func(e *Engine) error {
			return expectedErr
		}
		engine, err := New(failingOption)
		require.Error(t, err)
		require.ErrorIs(t, err, expectedErr)
		require.Nil(t, engine)
	})

	t.Run("With Failing Prelude", func(t *testing.T) {
		_, err := New(WithPrelude("function () { syntax error }"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to execute prelude")
	})
}

// TestNew_Fails tests the failure paths of isolate and context creation.
func TestNew_Fails(t *testing.T) {
	t.Run("Isolate Creation Fails", func(t *testing.T) {
		// Monkey-patch the function to simulate failure
		originalNewIsolate := v8NewIsolate
		v8NewIsolate = func() *v8go.Isolate {
			return nil
		}
		// Restore the original function after the test
		defer func() {
			v8NewIsolate = originalNewIsolate
		}()

		_, err := New()
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to create v8 isolate")
	})

	t.Run("Context Creation Fails", func(t *testing.T) {
		originalNewContext := v8NewContext
		v8NewContext = func(opt ...v8go.ContextOption) *v8go.Context {
			return nil
		}
		defer func() {
			v8NewContext = originalNewContext
		}()

		_, err := New()
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to create v8 context")
	})
}

func TestEngine_Eval(t *testing.T) {
	engine, err := New()
	require.NoError(t, err)
	defer engine.Close()

	_, err = engine.Eval("off.js", "1 + 2")
	require.ErrorIs(t, err, hostdispatch.ErrWrongThread)

	var (
		result  string
		evalErr error
		badErr  error
	)
	require.NoError(t, engine.Send(func() {
		result, evalErr = engine.Eval("sum.js", "1 + 2")
		_, badErr = engine.Eval("bad.js", "throw new Error('nope')")
	}))
	require.NoError(t, evalErr)
	require.Equal(t, "3", result)
	require.Error(t, badErr)
	require.Contains(t, badErr.Error(), "nope")
}
