// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package hostdispatch

import "time"

// Metrics collects dispatcher observations.
// Implementations must be safe for concurrent use and must not block.
type Metrics interface {
	// RecordWorkDuration records how long a work item took, transaction included.
	RecordWorkDuration(name string, duration time.Duration)

	// RecordWorkFailure records a work item that was rejected at the given stage.
	RecordWorkFailure(name string, stage Stage)

	// RecordQueueDepth records the number of items waiting in the queue.
	RecordQueueDepth(name string, depth int)

	// RecordWorkRejected records a submission that was never queued.
	RecordWorkRejected(name string, reason string)
}

// NilMetrics is a no-op Metrics implementation and the default.
type NilMetrics struct{}

// RecordWorkDuration is a no-op.
func (NilMetrics) RecordWorkDuration(name string, duration time.Duration) {}

// RecordWorkFailure is a no-op.
func (NilMetrics) RecordWorkFailure(name string, stage Stage) {}

// RecordQueueDepth is a no-op.
func (NilMetrics) RecordQueueDepth(name string, depth int) {}

// RecordWorkRejected is a no-op.
func (NilMetrics) RecordWorkRejected(name string, reason string) {}
