// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorage_PutGetHasDelete(t *testing.T) {
	s, err := NewStorage("memory", "")
	require.NoError(t, err)
	defer s.Close()

	key := []byte("proof_sessions/abc")
	val := []byte(`{"status":"pending"}`)

	ok, err := s.Has(key)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put(key, val))

	ok, err = s.Has(key)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.Get(key)
	require.NoError(t, err)
	require.True(t, bytes.Equal(val, got))

	require.NoError(t, s.Delete(key))

	ok, err = s.Has(key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStorage_IteratorWithPrefix(t *testing.T) {
	s, err := NewStorage("memory", "")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put([]byte("transactions/till1/0001"), []byte("a")))
	require.NoError(t, s.Put([]byte("transactions/till1/0002"), []byte("b")))
	require.NoError(t, s.Put([]byte("transactions/till2/0001"), []byte("c")))

	it := s.NewIteratorWithPrefix([]byte("transactions/till1/"))
	defer it.Release()

	count := 0
	for it.Next() {
		count++
	}
	require.NoError(t, it.Error())
	require.Equal(t, 2, count)
}

func TestStorage_DefaultsToBadgerForUnknownType(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStorage("unknown", dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put([]byte("k"), []byte("v")))
	got, err := s.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}
