// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package zkvm binds the scoring kernel (pkg/scoring) to a stable
// program identifier and produces verifiable receipts attesting that
// some input transactions, run through that exact program, yielded a
// given journal.
//
// No Go RISC Zero bindings exist — risc0-zkvm is Rust-only. The
// wrapper therefore implements a committed-attestation scheme standing
// in for a zk proving backend: the "seal" is an Ed25519 signature over
// the canonical journal, binding a receipt to a specific prover key
// the same way a real zkVM seal binds a receipt to a specific program.
// See DESIGN.md for the full rationale.
package zkvm

import (
	"crypto/sha256"

	"github.com/nyakiomaina/mpesa-credit-proof/pkg/scoring"
)

// ProgramID is the stable identifier of the committed scoring program.
// In a real zkVM deployment this is the hash of the compiled guest
// ELF; here it is a fixed digest of the program's semantic version, and
// changes only when pkg/scoring's observable behavior changes.
var ProgramID = sha256.Sum256([]byte("mpesa-credit-proof/scoring-kernel/v1"))

// ProofInput is everything the guest program needs: the raw
// transaction list. TillNumberHash is supplied out-of-band by the host
// and is not part of the guest's input — see the till-number binding
// note in DESIGN.md.
type ProofInput struct {
	Transactions []scoring.Transaction
}

// Receipt is the opaque, serializable artifact returned by Prove and
// consumed by Verify. Journal and Seal are both treated as opaque
// bytes by every component other than this package.
type Receipt struct {
	// Version allows the on-disk/over-the-wire envelope to evolve
	// without invalidating already-issued verification codes; see the
	// receipt-format-stability open question in DESIGN.md.
	Version uint8
	// ProgramID pins the receipt to the program that produced it.
	ProgramID [32]byte
	// Journal is the canonical serialization of a scoring.ProofOutput.
	Journal []byte
	// Seal attests that Journal was produced by ProgramID. The
	// development prover skips signing and stamps all-zero bytes here;
	// such receipts MUST be rejected by Verify outside development
	// mode.
	Seal []byte
	// Dev marks a receipt produced by the development prover, which
	// skips real attestation. Dev receipts never verify against a
	// non-development Verifier.
	Dev bool
}

const receiptVersion uint8 = 1
