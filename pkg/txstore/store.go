// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package txstore persists raw merchant transactions ahead of
// scoring. Re-uploading the same (till, reference) pair is a no-op,
// matching the unique constraint on transactions(till_id, reference)
// named in the external schema.
package txstore

import (
	"encoding/binary"
	"encoding/json"
	"sort"
	"sync"

	"github.com/nyakiomaina/mpesa-credit-proof/pkg/apperror"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/ids"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/scoring"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/storage"
)

// Store persists scoring.Transaction rows keyed by till. Key layout:
//
//	txn:<till_id>:<timestamp_be><tx_id>   -> JSON-encoded Transaction
//	txn-idx:<till_id>:<reference>         -> one-byte marker, for dedup
type Store struct {
	mu sync.Mutex
	db *storage.Storage
}

// NewStore constructs a Store over db.
func NewStore(db *storage.Storage) *Store {
	return &Store{db: db}
}

func refKey(tillID ids.ID, reference string) []byte {
	k := append([]byte("txn-idx:"), tillID[:]...)
	k = append(k, ':')
	return append(k, []byte(reference)...)
}

func txnKey(tillID ids.ID, timestamp int64, txID ids.ID) []byte {
	k := append([]byte("txn:"), tillID[:]...)
	k = append(k, ':')
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(timestamp))
	k = append(k, ts[:]...)
	return append(k, txID[:]...)
}

// Append stores tx under till, skipping it if (till, tx.Reference) has
// already been recorded.
func (s *Store) Append(tillID ids.ID, tx scoring.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	has, err := s.db.Has(refKey(tillID, tx.Reference))
	if err != nil {
		return apperror.Storage(err)
	}
	if has {
		return nil
	}

	raw, err := json.Marshal(tx)
	if err != nil {
		return apperror.Internal(err)
	}

	batch := s.db.NewBatch()
	if err := batch.Put(txnKey(tillID, tx.Timestamp, ids.New()), raw); err != nil {
		return apperror.Storage(err)
	}
	if err := batch.Put(refKey(tillID, tx.Reference), []byte{1}); err != nil {
		return apperror.Storage(err)
	}
	if err := batch.Write(); err != nil {
		return apperror.Storage(err)
	}
	return nil
}

// ListByTill returns every transaction recorded for till, ordered by
// timestamp ascending — the order the Proof Worker must feed the
// scoring kernel.
func (s *Store) ListByTill(tillID ids.ID) ([]scoring.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := append([]byte("txn:"), tillID[:]...)
	prefix = append(prefix, ':')
	iter := s.db.NewIteratorWithPrefix(prefix)
	defer iter.Release()

	var out []scoring.Transaction
	for iter.Next() {
		var tx scoring.Transaction
		if err := json.Unmarshal(iter.Value(), &tx); err != nil {
			return nil, apperror.Internal(err)
		}
		out = append(out, tx)
	}
	if err := iter.Error(); err != nil {
		return nil, apperror.Storage(err)
	}

	// The key encoding already sorts by timestamp, but iterators are
	// not guaranteed stable across every backend implementation; sort
	// explicitly so the Worker's input order never depends on that.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}
