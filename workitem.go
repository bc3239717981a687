// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package hostdispatch

import "github.com/google/uuid"

// DefaultLabel is used for work submitted with an empty transaction label.
const DefaultLabel = "transaction"

// Work is a unit of work to run on the designated thread.
// Returning an error or panicking fails the work and abandons its transaction.
type Work func() error

// workItem is one queued unit of work and the writable half of its future.
type workItem struct {
	id           string              // Unique id, diagnostics only
	label        string              // Transaction label
	work         Work                // Callable to execute
	transactions TransactionProvider // Provider the transaction is opened against
	future       *Future             // Completion handle shared with the caller
}

// newWorkItem creates a pending work item and its future.
func newWorkItem(work Work, label string, tx TransactionProvider, onHostThread func() bool) *workItem {
	if label == "" {
		label = DefaultLabel
	}
	id := uuid.NewString()
	return &workItem{
		id:           id,
		label:        label,
		work:         work,
		transactions: tx,
		future:       newFuture(id, label, onHostThread),
	}
}

// complete resolves the item's future. Only the first call has an effect.
func (w *workItem) complete(err error) {
	w.future.resolve(err)
}
