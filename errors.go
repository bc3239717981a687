// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package hostdispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrDispatcherClosed is returned for work submitted to, or still queued in, a closed dispatcher.
	ErrDispatcherClosed = errors.New("dispatcher is closed")

	// ErrHostRequired is returned by NewDispatcher when no host is configured.
	ErrHostRequired = errors.New("host must be provided")

	// ErrNilWork is returned when a nil callable is submitted.
	ErrNilWork = errors.New("work cannot be nil")

	// ErrNoTransactions is returned when work is submitted without a transaction provider.
	ErrNoTransactions = errors.New("no transaction provider configured")

	// ErrWrongThread is returned when an operation restricted to the designated thread
	// is invoked from any other goroutine.
	ErrWrongThread = errors.New("not called from the designated host thread")

	// ErrWaitOnHostThread is returned when the designated thread blocks on an unresolved future.
	// Work only runs on that thread, so waiting there would never return.
	ErrWaitOnHostThread = errors.New("cannot wait for pending work on the designated host thread")

	// ErrThreadStopped is returned by Thread.Send after the thread has stopped.
	ErrThreadStopped = errors.New("host thread is stopped")

	// ErrTransactionActive is returned when a transaction is begun while another is open.
	ErrTransactionActive = errors.New("a transaction is already active")

	// ErrTransactionDone is returned when a finished transaction is committed or rolled back again.
	ErrTransactionDone = errors.New("transaction already finished")

	// ErrNoDocument is returned when a transaction is begun without a loaded document.
	ErrNoDocument = errors.New("no active document")
)

// Stage identifies the step of a work item that failed.
type Stage int

const (
	StageBegin  Stage = iota // The transaction could not be started
	StageWork                // The callable returned an error or panicked
	StageCommit              // The callable succeeded but the commit failed
)

// String returns the string representation of a Stage.
func (s Stage) String() string {
	switch s {
	case StageBegin:
		return "begin"
	case StageWork:
		return "work"
	case StageCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// WorkError is the failure a Future is rejected with.
// It unwraps to the error raised by the callable or the transaction.
type WorkError struct {
	ID    string // Work item id
	Label string // Transaction label
	Stage Stage  // Step that failed
	Err   error  // Underlying error
}

// Error implements the error interface.
func (e *WorkError) Error() string {
	return fmt.Sprintf("%s %q failed: %v", e.Stage, e.Label, e.Err)
}

// Unwrap returns the underlying error.
func (e *WorkError) Unwrap() error {
	return e.Err
}

// PanicError carries a value recovered from a panicking callable.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsStage reports whether err is a WorkError that failed at the given stage.
func IsStage(err error, stage Stage) bool {
	var workErr *WorkError
	return errors.As(err, &workErr) && workErr.Stage == stage
}
