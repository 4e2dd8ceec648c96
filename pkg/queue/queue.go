// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package queue implements the proof_queue work list: left-push on
// enqueue, blocking right-pop on dequeue. Queue is backed by a
// buffered Go channel; a Redis-backed implementation is the natural
// swap for a multi-process deployment (see DESIGN.md).
package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned by Push and Pop once the queue has been
// closed.
var ErrClosed = errors.New("queue: closed")

// Queue is a FIFO of session IDs shared by the Verification Gateway
// (producer) and the Proof Worker (consumer).
type Queue interface {
	// Push enqueues value, mirroring Redis LPUSH.
	Push(ctx context.Context, value string) error
	// Pop blocks until a value is available or ctx is done, mirroring
	// Redis BRPOP. ok is false if ctx expired before a value arrived.
	Pop(ctx context.Context) (value string, ok bool, err error)
	// Close stops the queue; any blocked or future Pop unblocks with
	// ok=false, err=ErrClosed once drained.
	Close()
	// Len reports the number of values currently buffered, for the
	// gateway/worker's queue_depth gauge. Approximate: a concurrent
	// Push or Pop may race with the read.
	Len() int
}

// channelQueue is a Queue backed by a buffered channel.
type channelQueue struct {
	ch     chan string
	closed chan struct{}
}

// New returns a Queue with the given buffer capacity.
func New(capacity int) Queue {
	return &channelQueue{
		ch:     make(chan string, capacity),
		closed: make(chan struct{}),
	}
}

func (q *channelQueue) Push(ctx context.Context, value string) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- value:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return ErrClosed
	}
}

func (q *channelQueue) Pop(ctx context.Context) (string, bool, error) {
	select {
	case v := <-q.ch:
		return v, true, nil
	case <-ctx.Done():
		return "", false, nil
	case <-q.closed:
		select {
		case v := <-q.ch:
			return v, true, nil
		default:
			return "", false, ErrClosed
		}
	}
}

func (q *channelQueue) Len() int {
	return len(q.ch)
}

func (q *channelQueue) Close() {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
}
