// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package hostdispatch

import "sync"

const (
	defaultQueueCap = 16
	compactMinHead  = 64 // Don't compact until this many slots were consumed
)

// workQueue is the FIFO shared by producers (push) and the designated thread (pop).
type workQueue struct {
	mu    sync.Mutex
	items []*workItem
	head  int // Index of the oldest pending item
}

// newWorkQueue creates an empty work queue.
func newWorkQueue() *workQueue {
	return &workQueue{
		items: make([]*workItem, 0, defaultQueueCap),
	}
}

// push appends item to the tail. Append order defines execution order.
func (q *workQueue) push(item *workItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

// pop removes and returns the head item.
func (q *workQueue) pop() (*workItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.items) {
		return nil, false
	}

	item := q.items[q.head]
	// Release the reference held by the backing array
	q.items[q.head] = nil
	q.head++
	q.maybeCompactLocked()

	return item, true
}

// drain removes and returns every queued item in order.
func (q *workQueue) drain() []*workItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items[q.head:]
	q.items = make([]*workItem, 0, defaultQueueCap)
	q.head = 0
	return items
}

// len returns the number of queued items.
func (q *workQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// maybeCompactLocked moves pending items to the front once the consumed
// prefix outgrows them.
func (q *workQueue) maybeCompactLocked() {
	live := len(q.items) - q.head

	if live == 0 {
		if cap(q.items) >= compactMinHead {
			q.items = make([]*workItem, 0, defaultQueueCap)
		} else {
			q.items = q.items[:0]
		}
		q.head = 0
		return
	}
	if q.head < compactMinHead || q.head < live {
		return
	}

	newItems := make([]*workItem, live, max(live*2, defaultQueueCap))
	copy(newItems, q.items[q.head:])
	q.items = newItems
	q.head = 0
}
