// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package worker runs the Proof Worker: the long-running consumer
// that pulls session IDs off the queue, drives the zkVM wrapper, and
// persists the outcome to the Session Store.
package worker

import (
	"context"
	"time"

	"github.com/nyakiomaina/mpesa-credit-proof/internal/blocking"
	"github.com/nyakiomaina/mpesa-credit-proof/internal/logging"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/ids"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/metrics"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/queue"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/session"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/txstore"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/zkvm"
	"go.uber.org/zap"
)

// popTimeout bounds each blocking queue pop.
const popTimeout = 5 * time.Second

// backoff is how long the worker pauses after a transient
// infrastructure error before retrying.
const backoff = 5 * time.Second

// Worker pops session IDs from q, loads their transactions, proves
// them, and writes the result back to the session store. Only proving
// runs on the blocking pool; queue pops and store writes are cheap and
// run inline.
type Worker struct {
	queue    queue.Queue
	sessions *session.Store
	txns     *txstore.Store
	prover   *zkvm.Prover
	verifier *zkvm.Verifier
	pool     *blocking.Pool
	log      logging.Logger
	metrics  *metrics.Metrics
}

// WithMetrics attaches a Metrics instance the worker records
// proof outcomes and latency to. Optional; a nil metrics field is
// safe to skip.
func (w *Worker) WithMetrics(m *metrics.Metrics) *Worker {
	w.metrics = m
	return w
}

// New constructs a Worker. pool bounds concurrent Prove calls.
func New(q queue.Queue, sessions *session.Store, txns *txstore.Store, prover *zkvm.Prover, verifier *zkvm.Verifier, pool *blocking.Pool, log logging.Logger) *Worker {
	return &Worker{
		queue:    q,
		sessions: sessions,
		txns:     txns,
		prover:   prover,
		verifier: verifier,
		pool:     pool,
		log:      log,
	}
}

// Run processes sessions until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("proof worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("proof worker stopping")
			return
		default:
		}

		processed, err := w.processNext(ctx)
		if err != nil {
			w.log.Error("error processing job", zap.Error(err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		if !processed {
			continue
		}
	}
}

// processNext pops at most one session ID and drives it through
// proving. It returns processed=false (and a nil error) when the pop
// timed out with nothing to do — the ordinary idle case, not a
// failure.
func (w *Worker) processNext(ctx context.Context) (processed bool, err error) {
	popCtx, cancel := context.WithTimeout(ctx, popTimeout)
	defer cancel()

	value, ok, err := w.queue.Pop(popCtx)
	if w.metrics != nil {
		w.metrics.QueueDepth.Set(float64(w.queue.Len()))
	}
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	sessionID, err := ids.FromString(value)
	if err != nil {
		w.log.Error("dropping malformed queue entry", zap.String("value", value), zap.Error(err))
		return true, nil
	}

	w.handleSession(ctx, sessionID)
	return true, nil
}

func (w *Worker) handleSession(ctx context.Context, sessionID ids.ID) {
	log := w.log.With(zap.String("session_id", sessionID.String()))

	if err := w.sessions.Claim(sessionID); err != nil {
		log.Error("failed to claim session", zap.Error(err))
		return
	}

	sess, err := w.sessions.GetByID(sessionID)
	if err != nil {
		log.Error("claimed session vanished", zap.Error(err))
		return
	}

	txs, err := w.txns.ListByTill(sess.TillID)
	if err != nil {
		w.fail(sessionID, log, "loading transactions", err)
		return
	}

	_ = w.sessions.UpdateProgress(sessionID, 50)

	tillHash := sess.TillID
	var receipt zkvm.Receipt
	start := time.Now()
	err = w.pool.Submit(ctx, func() error {
		r, proveErr := w.prover.Prove(zkvm.ProofInput{Transactions: txs}, [32]byte(tillHash))
		if proveErr != nil {
			return proveErr
		}
		receipt = r
		return nil
	})
	if w.metrics != nil {
		w.metrics.ProofDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		w.fail(sessionID, log, "proving", err)
		return
	}

	journal, err := w.verifier.Verify(receipt)
	if err != nil {
		w.fail(sessionID, log, "self-check verification", err)
		return
	}

	receiptBytes, err := zkvm.Encode(receipt)
	if err != nil {
		w.fail(sessionID, log, "encoding receipt", err)
		return
	}

	if err := w.sessions.Complete(sessionID, journal.CreditScore, journal.Metrics, journal.PeriodStart, journal.PeriodEnd, receiptBytes); err != nil {
		log.Error("failed to persist completion", zap.Error(err))
		return
	}
	if w.metrics != nil {
		w.metrics.ProofsTotal.WithLabelValues("completed").Inc()
	}
	log.Info("proof generated", zap.Uint32("credit_score", journal.CreditScore))
}

func (w *Worker) fail(sessionID ids.ID, log logging.Logger, stage string, cause error) {
	log.Error("proof generation failed", zap.String("stage", stage), zap.Error(cause))
	if w.metrics != nil {
		w.metrics.ProofsTotal.WithLabelValues("failed").Inc()
	}
	if err := w.sessions.Fail(sessionID, stage+": "+cause.Error()); err != nil {
		log.Error("failed to persist failure", zap.Error(err))
	}
}
