// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueue_PushPop_FIFO(t *testing.T) {
	require := require.New(t)
	q := New(4)
	ctx := context.Background()

	require.NoError(q.Push(ctx, "a"))
	require.NoError(q.Push(ctx, "b"))

	v, ok, err := q.Pop(ctx)
	require.NoError(err)
	require.True(ok)
	require.Equal("a", v)

	v, ok, err = q.Pop(ctx)
	require.NoError(err)
	require.True(ok)
	require.Equal("b", v)
}

func TestQueue_Pop_TimesOutWhenEmpty(t *testing.T) {
	require := require.New(t)
	q := New(1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, ok, err := q.Pop(ctx)
	require.NoError(err)
	require.False(ok)
}

func TestQueue_Pop_BlocksUntilPush(t *testing.T) {
	require := require.New(t)
	q := New(1)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = q.Push(context.Background(), "late")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, ok, err := q.Pop(ctx)
	require.NoError(err)
	require.True(ok)
	require.Equal("late", v)
}

func TestQueue_Len_TracksBufferedValues(t *testing.T) {
	require := require.New(t)
	q := New(4)
	ctx := context.Background()

	require.Equal(0, q.Len())
	require.NoError(q.Push(ctx, "a"))
	require.NoError(q.Push(ctx, "b"))
	require.Equal(2, q.Len())

	_, ok, err := q.Pop(ctx)
	require.NoError(err)
	require.True(ok)
	require.Equal(1, q.Len())
}

func TestQueue_Closed_RejectsPush(t *testing.T) {
	require := require.New(t)
	q := New(1)
	q.Close()

	err := q.Push(context.Background(), "x")
	require.ErrorIs(err, ErrClosed)
}
