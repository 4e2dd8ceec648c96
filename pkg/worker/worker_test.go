// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nyakiomaina/mpesa-credit-proof/internal/blocking"
	"github.com/nyakiomaina/mpesa-credit-proof/internal/logging"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/ids"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/queue"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/scoring"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/session"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/storage"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/txstore"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/zkvm"
)

func newHarness(t *testing.T) (*Worker, *session.Store, *txstore.Store, queue.Queue, *zkvm.Verifier) {
	t.Helper()
	db, err := storage.NewStorage("memory", "")
	require.NoError(t, err)

	sessions := session.NewStore(db, logging.NoOp(), nil)
	txns := txstore.NewStore(db)
	q := queue.New(4)

	prover, err := zkvm.NewProver([]byte("worker-test-root"))
	require.NoError(t, err)
	verifier := zkvm.NewVerifier(zkvm.ProgramID, prover.PublicKey())
	pool := blocking.NewPool(2)

	w := New(q, sessions, txns, prover, verifier, pool, logging.NoOp())
	return w, sessions, txns, q, verifier
}

func TestWorker_ProcessNext_HappyPath(t *testing.T) {
	require := require.New(t)
	w, sessions, txns, q, verifier := newHarness(t)

	userID := ids.New()
	tillID := ids.New()
	sessID, err := sessions.CreateSession(userID, tillID)
	require.NoError(err)

	for d := 0; d < 30; d++ {
		err := txns.Append(tillID, scoring.Transaction{
			Timestamp:       (19000 + int64(d)) * 86400,
			Amount:          100_000,
			TransactionType: scoring.TransactionTypePayment,
			Reference:       fmt.Sprintf("ref-%d", d),
		})
		require.NoError(err)
	}

	require.NoError(q.Push(context.Background(), sessID.String()))

	ctx := context.Background()
	processed, err := w.processNext(ctx)
	require.NoError(err)
	require.True(processed)

	sess, err := sessions.GetByID(sessID)
	require.NoError(err)
	require.Equal(session.StatusCompleted, sess.Status)
	require.NotNil(sess.CreditScore)
	require.Equal(uint32(70), *sess.CreditScore)
	require.NotEmpty(sess.ReceiptData)

	receipt, err := zkvm.Decode(sess.ReceiptData)
	require.NoError(err)
	journal, err := verifier.Verify(receipt)
	require.NoError(err)
	require.Equal(uint32(70), journal.CreditScore)
}

func TestWorker_ProcessNext_EmptyQueueIsNotAnError(t *testing.T) {
	require := require.New(t)
	w, _, _, _, _ := newHarness(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	processed, err := w.processNext(ctx)
	require.NoError(err)
	require.False(processed)
}

func TestWorker_MissingTillTransactions_NullScores(t *testing.T) {
	require := require.New(t)
	w, sessions, _, q, _ := newHarness(t)

	userID, tillID := ids.New(), ids.New()
	sessID, err := sessions.CreateSession(userID, tillID)
	require.NoError(err)
	require.NoError(q.Push(context.Background(), sessID.String()))

	processed, err := w.processNext(context.Background())
	require.NoError(err)
	require.True(processed)

	sess, err := sessions.GetByID(sessID)
	require.NoError(err)
	require.Equal(session.StatusCompleted, sess.Status)
	require.Equal(uint32(0), *sess.CreditScore)
}

func TestWorker_MalformedQueueEntryIsDropped(t *testing.T) {
	require := require.New(t)
	w, _, _, q, _ := newHarness(t)

	require.NoError(q.Push(context.Background(), "not-a-valid-id"))

	processed, err := w.processNext(context.Background())
	require.NoError(err)
	require.True(processed)
}
