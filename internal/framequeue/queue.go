// File: internal/framequeue/queue.go
// Package framequeue
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection FIFO of inbound frames. The transport pushes, the
// connection notifier peeks and dequeues.

package framequeue

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-wsmsg/api"
)

// Queue is a thread-safe, unbounded-by-default FIFO of api.Frame.
type Queue struct {
	mu     sync.Mutex
	q      *queue.Queue
	limit  int
	closed bool
}

// New creates an empty queue. A positive limit bounds the number of
// queued frames; Push beyond it fails with an api.ErrTransport error.
func New(limit int) *Queue {
	return &Queue{
		q:     queue.New(),
		limit: limit,
	}
}

// Push appends a frame. It fails once the queue is closed or full.
func (fq *Queue) Push(f api.Frame) error {
	fq.mu.Lock()
	defer fq.mu.Unlock()
	if fq.closed {
		return api.ErrQueueClosed
	}
	if fq.limit > 0 && fq.q.Length() >= fq.limit {
		return api.NewError(api.ErrCodeTransport, "frame queue limit reached").
			WithContext("limit", fq.limit)
	}
	fq.q.Add(f)
	return nil
}

// Peek returns the oldest frame without removing it.
func (fq *Queue) Peek() (api.Frame, error) {
	fq.mu.Lock()
	defer fq.mu.Unlock()
	if fq.q.Length() == 0 {
		return api.Frame{}, fq.emptyErr()
	}
	return fq.q.Peek().(api.Frame), nil
}

// Dequeue removes and returns the oldest frame.
func (fq *Queue) Dequeue() (api.Frame, error) {
	fq.mu.Lock()
	defer fq.mu.Unlock()
	if fq.q.Length() == 0 {
		return api.Frame{}, fq.emptyErr()
	}
	return fq.q.Remove().(api.Frame), nil
}

// Len returns the number of queued frames.
func (fq *Queue) Len() int {
	fq.mu.Lock()
	defer fq.mu.Unlock()
	return fq.q.Length()
}

// Close rejects further pushes. Already queued frames stay readable.
func (fq *Queue) Close() {
	fq.mu.Lock()
	fq.closed = true
	fq.mu.Unlock()
}

// Reset drops every queued frame.
func (fq *Queue) Reset() {
	fq.mu.Lock()
	for fq.q.Length() > 0 {
		fq.q.Remove()
	}
	fq.mu.Unlock()
}

func (fq *Queue) emptyErr() error {
	if fq.closed {
		return api.ErrQueueClosed
	}
	return api.ErrQueueEmpty
}
