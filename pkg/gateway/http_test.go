// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nyakiomaina/mpesa-credit-proof/internal/blocking"
	"github.com/nyakiomaina/mpesa-credit-proof/internal/logging"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/ids"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/metrics"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/queue"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/scoring"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/session"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/storage"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/zkvm"
)

func newTestGateway(t *testing.T, allowDirect bool) (*Gateway, *session.Store) {
	t.Helper()
	db, err := storage.NewStorage("memory", "")
	require.NoError(t, err)

	sessions := session.NewStore(db, logging.NoOp(), nil)
	q := queue.New(8)

	prover, err := zkvm.NewDevProver()
	require.NoError(t, err)
	verifier := zkvm.NewVerifier(zkvm.ProgramID, prover.PublicKey()).AllowDev()
	pool := blocking.NewPool(2)

	gw := New(sessions, q, verifier, prover, pool, metrics.NewMetrics(), logging.NoOp(), allowDirect)
	return gw, sessions
}

func sampleTransactions() []scoring.Transaction {
	var txs []scoring.Transaction
	for d := 0; d < 30; d++ {
		txs = append(txs, scoring.Transaction{
			Timestamp:       int64(19000+d) * 86400,
			Amount:          100_000,
			TransactionType: scoring.TransactionTypePayment,
			Reference:       fmt.Sprintf("r-%d", d),
		})
	}
	return txs
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleGenerate_EnqueuesSession(t *testing.T) {
	gw, sessions := newTestGateway(t, false)
	r := gw.Router("development")

	userID, tillID := ids.New(), ids.New()
	rec := doJSON(t, r, http.MethodPost, "/api/proofs/generate", generateRequest{
		UserID: userID.String(),
		TillID: tillID.String(),
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	proofID := resp["proof_id"].(string)

	id, err := ids.FromString(proofID)
	require.NoError(t, err)
	sess, err := sessions.GetByID(id)
	require.NoError(t, err)
	require.Equal(t, session.StatusPending, sess.Status)
}

func TestHandleGenerate_AcceptsRawTillNumber(t *testing.T) {
	gw, sessions := newTestGateway(t, false)
	r := gw.Router("development")

	userID := ids.New()
	rec := doJSON(t, r, http.MethodPost, "/api/proofs/generate", generateRequest{
		UserID:     userID.String(),
		TillNumber: "174379",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	id, err := ids.FromString(resp["proof_id"].(string))
	require.NoError(t, err)

	sess, err := sessions.GetByID(id)
	require.NoError(t, err)
	require.Equal(t, ids.FromTillNumber("174379"), sess.TillID)

	// Supplying both forms of the till identifier is rejected.
	rec = doJSON(t, r, http.MethodPost, "/api/proofs/generate", generateRequest{
		UserID:     userID.String(),
		TillID:     ids.New().String(),
		TillNumber: "174379",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGenerate_RejectsInvalidIDs(t *testing.T) {
	gw, _ := newTestGateway(t, false)
	r := gw.Router("development")

	rec := doJSON(t, r, http.MethodPost, "/api/proofs/generate", generateRequest{
		UserID: "not-hex",
		TillID: "also-not-hex",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGenerateDirect_DisabledByDefault(t *testing.T) {
	gw, _ := newTestGateway(t, false)
	r := gw.Router("development")

	rec := doJSON(t, r, http.MethodPost, "/api/proofs/generate-direct", generateDirectRequest{
		TillID:       ids.New().String(),
		Transactions: sampleTransactions(),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGenerateDirect_ProvesInline(t *testing.T) {
	gw, _ := newTestGateway(t, true)
	r := gw.Router("development")

	rec := doJSON(t, r, http.MethodPost, "/api/proofs/generate-direct", generateDirectRequest{
		TillID:       ids.New().String(),
		Transactions: sampleTransactions(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, float64(70), resp["credit_score"])
}

func TestHandleStatusAndResult_FollowSessionLifecycle(t *testing.T) {
	gw, sessions := newTestGateway(t, false)
	r := gw.Router("development")

	userID, tillID := ids.New(), ids.New()
	sessionID, err := sessions.CreateSession(userID, tillID)
	require.NoError(t, err)

	rec := doJSON(t, r, http.MethodGet, "/api/proofs/status/"+sessionID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "pending", status["status"])

	// Result isn't available until the session completes.
	rec = doJSON(t, r, http.MethodGet, "/api/proofs/result/"+sessionID.String(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, sessions.Claim(sessionID))
	score := uint32(70)
	require.NoError(t, sessions.Complete(sessionID, score, scoring.BusinessMetrics{}, 19000*86400, 19030*86400, []byte("receipt")))

	rec = doJSON(t, r, http.MethodGet, "/api/proofs/result/"+sessionID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, float64(70), result["credit_score"])
}

func TestHandleListProofs_RequiresUserID(t *testing.T) {
	gw, _ := newTestGateway(t, false)
	r := gw.Router("development")

	rec := doJSON(t, r, http.MethodGet, "/api/proofs", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleVerifyByCode_RoundTripsACompletedSession(t *testing.T) {
	gw, sessions := newTestGateway(t, false)
	r := gw.Router("development")

	userID, tillID := ids.New(), ids.New()
	sessionID, err := sessions.CreateSession(userID, tillID)
	require.NoError(t, err)
	require.NoError(t, sessions.Claim(sessionID))
	score := uint32(55)
	require.NoError(t, sessions.Complete(sessionID, score, scoring.BusinessMetrics{}, 19000*86400, 19030*86400, []byte("receipt")))

	sess, err := sessions.GetByID(sessionID)
	require.NoError(t, err)

	rec := doJSON(t, r, http.MethodGet, "/verify/"+sess.VerificationCode, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, true, resp["valid"])
	require.Equal(t, float64(55), resp["credit_score"])
}

func TestHandleVerifyByCode_UnknownCodeIsNotFound(t *testing.T) {
	gw, _ := newTestGateway(t, false)
	r := gw.Router("development")

	rec := doJSON(t, r, http.MethodGet, "/verify/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleBulkVerify_SkipsUnknownIDs(t *testing.T) {
	gw, sessions := newTestGateway(t, false)
	r := gw.Router("development")

	userID, tillID := ids.New(), ids.New()
	sessionID, err := sessions.CreateSession(userID, tillID)
	require.NoError(t, err)
	require.NoError(t, sessions.Claim(sessionID))
	receipt, err := gw.devProver.Prove(zkvm.ProofInput{Transactions: sampleTransactions()}, [32]byte(tillID))
	require.NoError(t, err)
	receiptBytes, err := zkvm.Encode(receipt)
	require.NoError(t, err)
	score := uint32(42)
	require.NoError(t, sessions.Complete(sessionID, score, scoring.BusinessMetrics{}, 19000*86400, 19030*86400, receiptBytes))

	unknown := ids.New()
	rec := doJSON(t, r, http.MethodGet, "/api/lender/bulk-verify?ids="+sessionID.String()+","+unknown.String()+",not-even-an-id", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []verifyResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	require.Equal(t, sessionID.String(), resp.Results[0].ProofID)
	require.True(t, resp.Results[0].Valid)
}
