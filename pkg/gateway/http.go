// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gateway is the HTTP surface for proof generation and
// verification. Caller authentication and till ownership live in the
// external identity layer; every handler here trusts the
// caller-supplied user_id/till_id to have been verified upstream.
package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nyakiomaina/mpesa-credit-proof/internal/blocking"
	"github.com/nyakiomaina/mpesa-credit-proof/internal/logging"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/apperror"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/ids"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/metrics"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/queue"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/scoring"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/session"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/zkvm"
)

// Gateway holds the dependencies every handler needs.
type Gateway struct {
	sessions    *session.Store
	queue       queue.Queue
	verifier    *zkvm.Verifier
	devProver   *zkvm.Prover // used only by the direct-proving path
	pool        *blocking.Pool
	metrics     *metrics.Metrics
	log         logging.Logger
	allowDirect bool
}

// New constructs a Gateway. devProver and allowDirect together gate
// the synchronous generate-direct path: it only ever runs the
// development prover, and only when explicitly enabled.
func New(sessions *session.Store, q queue.Queue, verifier *zkvm.Verifier, devProver *zkvm.Prover, pool *blocking.Pool, m *metrics.Metrics, log logging.Logger, allowDirect bool) *Gateway {
	return &Gateway{
		sessions:    sessions,
		queue:       q,
		verifier:    verifier,
		devProver:   devProver,
		pool:        pool,
		metrics:     m,
		log:         log,
		allowDirect: allowDirect,
	}
}

// Router builds the gin.Engine serving the proof and verification
// routes.
func (g *Gateway) Router(env string) *gin.Engine {
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Unix()})
	})

	api := r.Group("/api")
	{
		api.POST("/proofs/generate", g.handleGenerate)
		api.POST("/proofs/generate-direct", g.handleGenerateDirect)
		api.GET("/proofs/status/:id", g.handleStatus)
		api.GET("/proofs/result/:id", g.handleResult)
		api.GET("/proofs", g.handleListProofs)
		api.POST("/lender/verify", g.handleLenderVerify)
		api.GET("/lender/bulk-verify", g.handleBulkVerify)
	}
	r.GET("/verify/:code", g.handleVerifyByCode)

	return r
}

func (g *Gateway) fail(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		g.log.Error("request failed", zap.String("request_id", c.GetString("request_id")), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": apperror.PublicMessage(err)})
}

// requestID stamps every request with a correlation ID, echoed back in
// the response header and available to handlers for log correlation.
// Request IDs are a pure tracing concern and carry no bearing on the
// caller-supplied user/till/proof IDs (pkg/ids), which is why they use
// google/uuid rather than the fixed-size hash-backed ID type.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

type generateRequest struct {
	UserID string `json:"user_id" binding:"required"`
	// Exactly one of TillID (a previously derived identifier) or
	// TillNumber (the raw 5-7 digit merchant number, hashed here and
	// never persisted) must be set.
	TillID     string `json:"till_id"`
	TillNumber string `json:"till_number"`
}

// tillIDFrom resolves the till identifier from a request: the raw till
// number is hashed immediately so only its digest ever reaches the
// stores and the proof journal.
func tillIDFrom(tillID, tillNumber string) (ids.ID, error) {
	switch {
	case tillID != "" && tillNumber != "":
		return ids.ID{}, apperror.Validation("supply till_id or till_number, not both")
	case tillNumber != "":
		return ids.FromTillNumber(tillNumber), nil
	case tillID != "":
		id, err := ids.FromString(tillID)
		if err != nil {
			return ids.ID{}, apperror.Validation("invalid till_id")
		}
		return id, nil
	default:
		return ids.ID{}, apperror.Validation("till_id or till_number is required")
	}
}

// handleGenerate enqueues proof generation for a till the caller
// owns. POST /api/proofs/generate
func (g *Gateway) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, apperror.Validation("%v", err))
		return
	}

	userID, err := ids.FromString(req.UserID)
	if err != nil {
		g.fail(c, apperror.Validation("invalid user_id"))
		return
	}
	tillID, err := tillIDFrom(req.TillID, req.TillNumber)
	if err != nil {
		g.fail(c, err)
		return
	}

	sessionID, err := g.sessions.CreateSession(userID, tillID)
	if err != nil {
		g.fail(c, err)
		return
	}

	if err := g.queue.Push(c.Request.Context(), sessionID.String()); err != nil {
		g.fail(c, apperror.Storage(err))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"proof_id": sessionID.String(), "status": session.StatusPending})
}

type generateDirectRequest struct {
	TillID       string                `json:"till_id"`
	TillNumber   string                `json:"till_number"`
	Transactions []scoring.Transaction `json:"transactions" binding:"required"`
}

// handleGenerateDirect proves inline over caller-supplied
// transactions, bypassing the queue. Only reachable when the gateway
// was constructed with allowDirect=true, and only ever runs the
// development prover. Inline proving contends for the same blocking
// pool as the worker, so it stays disabled in production.
func (g *Gateway) handleGenerateDirect(c *gin.Context) {
	if !g.allowDirect || g.devProver == nil {
		g.fail(c, apperror.New(apperror.KindValidation, "direct proving is disabled"))
		return
	}

	var req generateDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, apperror.Validation("%v", err))
		return
	}
	tillID, err := tillIDFrom(req.TillID, req.TillNumber)
	if err != nil {
		g.fail(c, err)
		return
	}

	var receipt zkvm.Receipt
	err = g.pool.Submit(c.Request.Context(), func() error {
		r, proveErr := g.devProver.Prove(zkvm.ProofInput{Transactions: req.Transactions}, [32]byte(tillID))
		if proveErr != nil {
			return proveErr
		}
		receipt = r
		return nil
	})
	if err != nil {
		g.fail(c, apperror.Internal(err))
		return
	}

	journal, err := zkvm.NewVerifier(zkvm.ProgramID, g.devProver.PublicKey()).AllowDev().Verify(receipt)
	if err != nil {
		g.fail(c, apperror.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"credit_score": journal.CreditScore,
		"metrics":      journal.Metrics,
		"period_start": journal.PeriodStart,
		"period_end":   journal.PeriodEnd,
	})
}

// handleStatus returns {status, progress, error}. GET
// /api/proofs/status/:id
func (g *Gateway) handleStatus(c *gin.Context) {
	id, err := ids.FromString(c.Param("id"))
	if err != nil {
		g.fail(c, apperror.Validation("invalid id"))
		return
	}
	sess, err := g.sessions.GetByID(id)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   sess.Status,
		"progress": sess.Progress,
		"error":    sess.ErrorMessage,
	})
}

// handleResult returns the completed proof payload. GET
// /api/proofs/result/:id
func (g *Gateway) handleResult(c *gin.Context) {
	id, err := ids.FromString(c.Param("id"))
	if err != nil {
		g.fail(c, apperror.Validation("invalid id"))
		return
	}
	sess, err := g.sessions.GetByID(id)
	if err != nil {
		g.fail(c, err)
		return
	}
	if sess.Status != session.StatusCompleted {
		g.fail(c, apperror.NotFound("proof %s is not completed", id))
		return
	}

	body := gin.H{
		"proof_id":         sess.ID.String(),
		"credit_score":     sess.CreditScore,
		"metrics":          sess.Metrics,
		"period_start":     sess.PeriodStart,
		"period_end":       sess.PeriodEnd,
		"verification_url": "/verify/" + sess.VerificationCode,
		"expires_at":       sess.ExpiresAt,
	}
	if c.Query("include_receipt") == "true" {
		body["receipt_data"] = sess.ReceiptData
	}
	c.JSON(http.StatusOK, body)
}

// handleListProofs lists the caller's sessions, most recent first,
// limit 50. GET /api/proofs
func (g *Gateway) handleListProofs(c *gin.Context) {
	userID, err := ids.FromString(c.Query("user_id"))
	if err != nil {
		g.fail(c, apperror.Validation("invalid or missing user_id"))
		return
	}
	list, err := g.sessions.ListByUser(userID)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proofs": list})
}

type lenderVerifyRequest struct {
	ProofID string `json:"proof_id" binding:"required"`
}

// handleLenderVerify verifies a receipt by proof ID. POST
// /api/lender/verify
func (g *Gateway) handleLenderVerify(c *gin.Context) {
	var req lenderVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, apperror.Validation("%v", err))
		return
	}
	result := g.verifyByProofID(req.ProofID)
	g.recordVerification(result.Valid)
	c.JSON(http.StatusOK, result)
}

// handleBulkVerify verifies a comma-separated list of proof IDs. GET
// /api/lender/bulk-verify?ids=
func (g *Gateway) handleBulkVerify(c *gin.Context) {
	raw := c.Query("ids")
	var results []verifyResult
	for _, id := range strings.Split(raw, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		result := g.verifyByProofID(id)
		g.recordVerification(result.Valid)
		if result.Valid || result.looked {
			results = append(results, result)
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// handleVerifyByCode is the public, unauthenticated verification
// path. GET /verify/:code
func (g *Gateway) handleVerifyByCode(c *gin.Context) {
	code := c.Param("code")
	sess, err := g.sessions.GetByVerificationCode(code)
	if err != nil || sess.Status != session.StatusCompleted || sess.Expired(time.Now()) {
		g.recordVerification(false)
		c.JSON(http.StatusNotFound, gin.H{"valid": false})
		return
	}

	g.recordVerification(true)
	c.JSON(http.StatusOK, gin.H{
		"valid":        true,
		"business_id":  sess.TillID.String(),
		"period_start": sess.PeriodStart,
		"period_end":   sess.PeriodEnd,
		"credit_score": sess.CreditScore,
		"metrics":      sess.Metrics,
	})
}

type verifyResult struct {
	ProofID string                   `json:"proof_id"`
	Valid   bool                     `json:"valid"`
	Score   *uint32                  `json:"credit_score,omitempty"`
	Metrics *scoring.BusinessMetrics `json:"metrics,omitempty"`
	looked  bool
}

// verifyByProofID looks up the session for proofID and, if completed,
// re-verifies its stored receipt bytes as a pure cryptographic check.
// Verification is a question, not a command: a failed check is a
// {valid: false} answer, never an HTTP error.
func (g *Gateway) verifyByProofID(proofID string) verifyResult {
	id, err := ids.FromString(proofID)
	if err != nil {
		return verifyResult{ProofID: proofID}
	}
	sess, err := g.sessions.GetByID(id)
	if err != nil {
		return verifyResult{ProofID: proofID}
	}
	if sess.Status != session.StatusCompleted || len(sess.ReceiptData) == 0 {
		return verifyResult{ProofID: proofID, looked: true}
	}

	receipt, err := zkvm.Decode(sess.ReceiptData)
	if err != nil {
		return verifyResult{ProofID: proofID, looked: true}
	}
	journal, err := g.verifier.Verify(receipt)
	if err != nil {
		return verifyResult{ProofID: proofID, looked: true}
	}
	return verifyResult{ProofID: proofID, Valid: true, Score: &journal.CreditScore, Metrics: &journal.Metrics, looked: true}
}

func (g *Gateway) recordVerification(valid bool) {
	if g.metrics == nil {
		return
	}
	label := "invalid"
	if valid {
		label = "valid"
	}
	g.metrics.VerificationsTotal.WithLabelValues(label).Inc()
}
