// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package session

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nyakiomaina/mpesa-credit-proof/internal/logging"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/apperror"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/ids"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/scoring"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/storage"
)

// verificationCodeAlphabet is URL-safe and omits visually ambiguous
// characters (0/O, 1/I/l).
const verificationCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz"

const maxCodeGenerationAttempts = 20

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// Store is the durable, single-writer-per-session table of
// ProofSession records. The in-process mutex provides the atomicity
// the state machine requires for a single Store instance; the
// underlying KV database provides durability across restarts. Key
// layout:
//
//	session:<id>                 -> JSON-encoded ProofSession
//	vcode:<verification_code>    -> session id (32 bytes)
//	user:<user_id>:<session_id>  -> one-byte marker, for ListByUser
type Store struct {
	mu    sync.Mutex
	db    *storage.Storage
	log   logging.Logger
	clock Clock
}

// NewStore constructs a Store over db. clock defaults to time.Now.
func NewStore(db *storage.Storage, log logging.Logger, clock Clock) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{db: db, log: log, clock: clock}
}

func sessionKey(id ids.ID) []byte { return append([]byte("session:"), id[:]...) }
func vcodeKey(code string) []byte { return append([]byte("vcode:"), []byte(code)...) }
func userIndexKey(userID, sessionID ids.ID) []byte {
	k := append([]byte("user:"), userID[:]...)
	k = append(k, ':')
	return append(k, sessionID[:]...)
}

// CreateSession inserts a new Pending ProofSession for (userID, tillID)
// with a fresh, unique verification code and a 90-day expiry.
func (s *Store) CreateSession(userID, tillID ids.ID) (ids.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.generateUniqueCode()
	if err != nil {
		return ids.ID{}, err
	}

	now := s.clock()
	sess := ProofSession{
		ID:               ids.New(),
		UserID:           userID,
		TillID:           tillID,
		Status:           StatusPending,
		VerificationCode: code,
		ExpiresAt:        now.Add(Retention),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.put(sess); err != nil {
		return ids.ID{}, err
	}
	if err := s.db.Put(vcodeKey(code), sess.ID[:]); err != nil {
		return ids.ID{}, apperror.Storage(err)
	}
	if err := s.db.Put(userIndexKey(userID, sess.ID), []byte{1}); err != nil {
		return ids.ID{}, apperror.Storage(err)
	}

	s.log.Info("proof session created")
	return sess.ID, nil
}

// Claim performs the atomic Pending -> Processing transition.
func (s *Store) Claim(id ids.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(id)
	if err != nil {
		return err
	}
	if sess.Status != StatusPending {
		return apperror.Conflict("session %s is not pending", id)
	}
	sess.Status = StatusProcessing
	sess.UpdatedAt = s.clock()
	return s.put(*sess)
}

// UpdateProgress writes a non-binding progress hint.
func (s *Store) UpdateProgress(id ids.ID, pct int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.Progress = &pct
	sess.UpdatedAt = s.clock()
	return s.put(*sess)
}

// Complete performs the atomic Processing -> Completed transition,
// attaching the computed result.
func (s *Store) Complete(id ids.ID, score uint32, metrics scoring.BusinessMetrics, periodStart, periodEnd int64, receipt []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(id)
	if err != nil {
		return err
	}
	if sess.Status != StatusProcessing {
		return apperror.Conflict("session %s is not processing", id)
	}
	sess.Status = StatusCompleted
	sess.CreditScore = &score
	sess.Metrics = &metrics
	sess.PeriodStart = &periodStart
	sess.PeriodEnd = &periodEnd
	sess.ReceiptData = receipt
	full := 100
	sess.Progress = &full
	sess.UpdatedAt = s.clock()
	return s.put(*sess)
}

// Fail performs the atomic Processing -> Failed transition.
func (s *Store) Fail(id ids.ID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(id)
	if err != nil {
		return err
	}
	if sess.Status != StatusProcessing {
		return apperror.Conflict("session %s is not processing", id)
	}
	sess.Status = StatusFailed
	sess.ErrorMessage = &errMsg
	sess.UpdatedAt = s.clock()
	return s.put(*sess)
}

// GetByID returns the session with the given ID.
func (s *Store) GetByID(id ids.ID) (*ProofSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

// GetByVerificationCode returns the session that owns code, without
// checking expiry — callers that care about expiry (the Verification
// Gateway) check Expired themselves so the store stays a pure lookup.
func (s *Store) GetByVerificationCode(code string) (*ProofSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.db.Get(vcodeKey(code))
	if err != nil {
		return nil, apperror.NotFound("unknown verification code")
	}
	var id ids.ID
	copy(id[:], raw)
	return s.get(id)
}

// ListByUser returns up to 50 of userID's sessions, most recently
// updated first.
func (s *Store) ListByUser(userID ids.ID) ([]ProofSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := append([]byte("user:"), userID[:]...)
	iter := s.db.NewIteratorWithPrefix(prefix)
	defer iter.Release()

	var out []ProofSession
	for iter.Next() {
		key := iter.Key()
		if len(key) < len(prefix)+1+32 {
			continue
		}
		var id ids.ID
		copy(id[:], key[len(key)-32:])
		sess, err := s.get(id)
		if err != nil {
			continue
		}
		out = append(out, *sess)
	}
	if err := iter.Error(); err != nil {
		return nil, apperror.Storage(err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > 50 {
		out = out[:50]
	}
	return out, nil
}

func (s *Store) get(id ids.ID) (*ProofSession, error) {
	raw, err := s.db.Get(sessionKey(id))
	if err != nil {
		return nil, apperror.NotFound("session %s not found", id)
	}
	var sess ProofSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, apperror.Internal(fmt.Errorf("decoding session %s: %w", id, err))
	}
	return &sess, nil
}

func (s *Store) put(sess ProofSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return apperror.Internal(err)
	}
	if err := s.db.Put(sessionKey(sess.ID), raw); err != nil {
		return apperror.Storage(err)
	}
	return nil
}

// generateUniqueCode draws a random verification code and retries on
// the rare collision, keeping codes unique across all sessions. Must
// be called with s.mu held.
func (s *Store) generateUniqueCode() (string, error) {
	for attempt := 0; attempt < maxCodeGenerationAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", apperror.Internal(err)
		}
		has, err := s.db.Has(vcodeKey(code))
		if err != nil {
			return "", apperror.Storage(err)
		}
		if !has {
			return code, nil
		}
	}
	return "", apperror.Internal(errors.New("exhausted verification code generation attempts"))
}

func randomCode() (string, error) {
	b := make([]byte, VerificationCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	out := make([]byte, VerificationCodeLength)
	n := len(verificationCodeAlphabet)
	for i, v := range b {
		out[i] = verificationCodeAlphabet[int(v)%n]
	}
	return string(out), nil
}
