// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package hostdispatch

// Host is the single-threaded application that owns document state.
// Its designated thread is the only place document mutation is valid.
type Host interface {
	// Raise asks the host to call handler once on its designated thread.
	// It must not block and must not run handler synchronously.
	Raise(handler func())

	// Send runs fn on the designated thread and returns once fn has completed.
	// Called from the designated thread itself, fn runs inline.
	Send(fn func()) error

	// OnHostThread reports whether the caller is running on the designated thread.
	OnHostThread() bool
}

// TransactionProvider opens transactional scopes against a document.
type TransactionProvider interface {
	// Begin opens a transaction labelled for host bookkeeping.
	Begin(label string) (Transaction, error)
}

// Transaction is an open transactional scope.
// Exactly one of Commit or Rollback ends it.
type Transaction interface {
	Commit() error
	Rollback() error
}

// TransactionFunc adapts a function to a TransactionProvider.
type TransactionFunc func(label string) (Transaction, error)

// Begin calls f(label).
func (f TransactionFunc) Begin(label string) (Transaction, error) {
	return f(label)
}

// Evaluator evaluates script source inside a host's runtime.
// It must only be called on the designated thread.
type Evaluator interface {
	// Eval runs src and returns the string form of its completion value.
	// name is used as the script origin in error messages.
	Eval(name, src string) (string, error)
}

// ScriptHost is a host whose document state lives in a script runtime.
type ScriptHost interface {
	Host
	Evaluator
}
