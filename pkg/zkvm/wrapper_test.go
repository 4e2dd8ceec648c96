// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package zkvm

import (
	"crypto/ed25519"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nyakiomaina/mpesa-credit-proof/pkg/scoring"
)

func sampleInput() ProofInput {
	txs := make([]scoring.Transaction, 0, 30)
	for d := 0; d < 30; d++ {
		txs = append(txs, scoring.Transaction{
			Timestamp:       (19000 + int64(d)) * 86400,
			Amount:          100_000,
			TransactionType: scoring.TransactionTypePayment,
			Reference:       fmt.Sprintf("ref-%d", d),
		})
	}
	return ProofInput{Transactions: txs}
}

func TestProveVerify_RoundTrip(t *testing.T) {
	require := require.New(t)

	prover, err := NewProver([]byte("test-root-secret"))
	require.NoError(err)

	var tillHash [32]byte
	copy(tillHash[:], []byte("till-hash-fixture-0000000000000"))

	receipt, err := prover.Prove(sampleInput(), tillHash)
	require.NoError(err)
	require.False(receipt.Dev)
	require.Equal(ProgramID, receipt.ProgramID)
	require.NotEmpty(receipt.Seal)

	verifier := NewVerifier(ProgramID, prover.PublicKey())
	out, err := verifier.Verify(receipt)
	require.NoError(err)
	require.Equal(tillHash, out.TillNumberHash)
	require.Equal(uint32(70), out.CreditScore)
}

func TestVerify_RejectsTamperedJournal(t *testing.T) {
	require := require.New(t)

	prover, err := NewProver([]byte("test-root-secret"))
	require.NoError(err)

	receipt, err := prover.Prove(sampleInput(), [32]byte{})
	require.NoError(err)

	receipt.Journal = append([]byte(nil), receipt.Journal...)
	receipt.Journal[0] ^= 0xFF

	verifier := NewVerifier(ProgramID, prover.PublicKey())
	_, err = verifier.Verify(receipt)
	require.ErrorIs(err, ErrSealInvalid)
}

func TestVerify_RejectsWrongKey(t *testing.T) {
	require := require.New(t)

	proverA, err := NewProver([]byte("root-a"))
	require.NoError(err)
	proverB, err := NewProver([]byte("root-b"))
	require.NoError(err)

	receipt, err := proverA.Prove(sampleInput(), [32]byte{})
	require.NoError(err)

	verifier := NewVerifier(ProgramID, proverB.PublicKey())
	_, err = verifier.Verify(receipt)
	require.ErrorIs(err, ErrSealInvalid)
}

func TestVerify_RejectsProgramMismatch(t *testing.T) {
	require := require.New(t)

	prover, err := NewProver([]byte("test-root-secret"))
	require.NoError(err)

	receipt, err := prover.Prove(sampleInput(), [32]byte{})
	require.NoError(err)
	receipt.ProgramID[0] ^= 0xFF

	verifier := NewVerifier(ProgramID, prover.PublicKey())
	_, err = verifier.Verify(receipt)
	require.ErrorIs(err, ErrProgramMismatch)
}

func TestVerify_RejectsDevReceiptByDefault(t *testing.T) {
	require := require.New(t)

	prover, err := NewDevProver()
	require.NoError(err)
	require.True(prover.dev)

	receipt, err := prover.Prove(sampleInput(), [32]byte{})
	require.NoError(err)
	require.True(receipt.Dev)
	require.Equal(make([]byte, ed25519.SignatureSize), receipt.Seal)

	verifier := NewVerifier(ProgramID, prover.PublicKey())
	_, err = verifier.Verify(receipt)
	require.ErrorIs(err, ErrDevReceiptRejected)

	_, err = verifier.AllowDev().Verify(receipt)
	require.NoError(err)
}

func TestProve_DeterministicForSameRootSecret(t *testing.T) {
	require := require.New(t)

	p1, err := NewProver([]byte("shared-root"))
	require.NoError(err)
	p2, err := NewProver([]byte("shared-root"))
	require.NoError(err)

	require.Equal(p1.PublicKey(), p2.PublicKey())

	r1, err := p1.Prove(sampleInput(), [32]byte{})
	require.NoError(err)
	r2, err := p2.Prove(sampleInput(), [32]byte{})
	require.NoError(err)
	require.Equal(r1, r2)
}
