// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blocking

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPool_BoundsConcurrency(t *testing.T) {
	require := require.New(t)
	p := NewPool(2)

	var inFlight, maxSeen int32
	done := make(chan struct{})

	for i := 0; i < 6; i++ {
		go func() {
			_ = p.Submit(context.Background(), func() error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					old := atomic.LoadInt32(&maxSeen)
					if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}

	require.LessOrEqual(int(maxSeen), 2)
}

func TestPool_SubmitPropagatesError(t *testing.T) {
	require := require.New(t)
	p := NewPool(1)

	boom := errors.New("boom")
	err := p.Submit(context.Background(), func() error { return boom })
	require.ErrorIs(err, boom)
}

func TestPool_SubmitRespectsContextCancellation(t *testing.T) {
	require := require.New(t)
	p := NewPool(1)

	block := make(chan struct{})
	go func() {
		_ = p.Submit(context.Background(), func() error {
			<-block
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond) // let the first Submit take the only slot

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func() error { return nil })
	require.ErrorIs(err, context.DeadlineExceeded)

	close(block)
}
