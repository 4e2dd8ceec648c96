// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package session persists ProofSession records and enforces their
// state machine. A session moves Pending -> Processing -> {Completed,
// Failed} and never backward; receipt_data and credit_score are set
// iff Completed, error_message iff Failed.
package session

import (
	"time"

	"github.com/nyakiomaina/mpesa-credit-proof/pkg/ids"
	"github.com/nyakiomaina/mpesa-credit-proof/pkg/scoring"
)

// Status is a ProofSession's position in its state machine.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Retention is the documented window a completed session's
// verification code stays valid for.
const Retention = 90 * 24 * time.Hour

// VerificationCodeLength is the length, in characters, of a
// generated verification code.
const VerificationCodeLength = 12

// ProofSession is the durable record of one proof-generation request.
type ProofSession struct {
	ID               ids.ID                   `json:"id"`
	UserID           ids.ID                   `json:"user_id"`
	TillID           ids.ID                   `json:"till_id"`
	Status           Status                   `json:"status"`
	Progress         *int                     `json:"progress,omitempty"`
	CreditScore      *uint32                  `json:"credit_score,omitempty"`
	Metrics          *scoring.BusinessMetrics `json:"metrics,omitempty"`
	PeriodStart      *int64                   `json:"period_start,omitempty"`
	PeriodEnd        *int64                   `json:"period_end,omitempty"`
	ReceiptData      []byte                   `json:"receipt_data,omitempty"`
	VerificationCode string                   `json:"verification_code"`
	ExpiresAt        time.Time                `json:"expires_at"`
	ErrorMessage     *string                  `json:"error_message,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

// Expired reports whether the session's verification code should be
// treated as unusable as of now.
func (s ProofSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
