// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package zkvm

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/nyakiomaina/mpesa-credit-proof/pkg/scoring"
)

var (
	// ErrProgramMismatch is returned when a receipt's ProgramID does not
	// match the Verifier's.
	ErrProgramMismatch = errors.New("zkvm: program id mismatch")
	// ErrSealInvalid is returned when a receipt's seal does not verify
	// against its journal and the verifier's key.
	ErrSealInvalid = errors.New("zkvm: seal verification failed")
	// ErrDevReceiptRejected is returned when a non-development verifier
	// is asked to verify a development-mode receipt.
	ErrDevReceiptRejected = errors.New("zkvm: development receipts are not accepted here")
	// ErrUnsupportedVersion is returned for a receipt envelope version
	// this build does not understand.
	ErrUnsupportedVersion = errors.New("zkvm: unsupported receipt version")
)

// hkdfInfo namespaces the attestation signing key away from any other
// key derived from the same root secret.
const hkdfInfo = "mpesa-credit-proof/zkvm/attestation-key/v1"

// Prover runs the scoring kernel over a host-supplied input and commits
// the result to a signed Receipt. A full zkVM prover would execute the
// guest program inside the zkVM and obtain a cryptographic seal from
// the proving backend; no Go proving backend exists for the kernel, so
// this Prover signs the journal directly with an Ed25519 key derived
// from a root secret, attesting that a holder of the key ran the
// committed program. Prove never touches the network and never blocks beyond
// the CPU cost of Score and Ed25519 signing, so callers that want to
// bound concurrent proving load should run it through a worker pool
// (see internal/blocking) rather than rely on Prove itself to throttle.
type Prover struct {
	dev bool
	key ed25519.PrivateKey
}

// NewProver derives a deterministic signing key from rootSecret via
// HKDF-SHA256. The same rootSecret always yields the same key, so
// receipts produced by independently started processes sharing a
// rootSecret verify against each other.
func NewProver(rootSecret []byte) (*Prover, error) {
	seed := make([]byte, ed25519.SeedSize)
	kdf := hkdf.New(sha256.New, rootSecret, nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, seed); err != nil {
		return nil, fmt.Errorf("zkvm: deriving signing key: %w", err)
	}
	return &Prover{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// NewDevProver returns a Prover that skips seal generation entirely:
// every receipt it issues carries an all-zero seal and is marked Dev.
// Dev receipts are rejected by any Verifier not explicitly constructed
// with AllowDev, so a development prover can never be mistaken for a
// production one downstream. The ephemeral key exists only so
// PublicKey still yields a usable verifier binding.
func NewDevProver() (*Prover, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Prover{dev: true, key: priv}, nil
}

// PublicKey returns the verifying key for this prover's signatures.
func (p *Prover) PublicKey() ed25519.PublicKey {
	return p.key.Public().(ed25519.PublicKey)
}

// Prove runs the scoring kernel over input and returns a signed
// receipt binding the resulting journal to ProgramID.
func (p *Prover) Prove(input ProofInput, tillNumberHash [32]byte) (Receipt, error) {
	output := scoring.Score(input.Transactions)
	output.TillNumberHash = tillNumberHash

	journal, err := json.Marshal(output)
	if err != nil {
		return Receipt{}, fmt.Errorf("zkvm: encoding journal: %w", err)
	}

	// Development receipts carry an all-zero seal instead of a
	// signature; Verify refuses them unless explicitly in AllowDev mode.
	seal := make([]byte, ed25519.SignatureSize)
	if !p.dev {
		seal = ed25519.Sign(p.key, signedBytes(journal))
	}

	return Receipt{
		Version:   receiptVersion,
		ProgramID: ProgramID,
		Journal:   journal,
		Seal:      seal,
		Dev:       p.dev,
	}, nil
}

// Verifier checks receipts issued by a Prover holding the matching
// private key.
type Verifier struct {
	programID [32]byte
	publicKey ed25519.PublicKey
	allowDev  bool
}

// NewVerifier constructs a Verifier bound to the given program and
// public key. Development receipts are rejected unless AllowDev is
// set on the returned Verifier.
func NewVerifier(programID [32]byte, publicKey ed25519.PublicKey) *Verifier {
	return &Verifier{programID: programID, publicKey: publicKey}
}

// AllowDev returns a copy of v that also accepts development receipts.
// Their seal is all zeros and is not checked, so no key binds them to
// a particular prover. Intended for local/staging
// environments only — never wire this into a production verification
// path.
func (v *Verifier) AllowDev() *Verifier {
	cp := *v
	cp.allowDev = true
	return &cp
}

// Verify checks a receipt's program binding and seal, and returns the
// decoded journal on success.
func (v *Verifier) Verify(r Receipt) (scoring.ProofOutput, error) {
	var out scoring.ProofOutput

	if r.Version != receiptVersion {
		return out, ErrUnsupportedVersion
	}
	if r.ProgramID != v.programID {
		return out, ErrProgramMismatch
	}
	if r.Dev {
		if !v.allowDev {
			return out, ErrDevReceiptRejected
		}
		// Dev receipts have no seal to check; AllowDev accepted the
		// journal on trust.
	} else {
		if len(r.Seal) == 0 {
			return out, ErrSealInvalid
		}
		if !ed25519.Verify(v.publicKey, signedBytes(r.Journal), r.Seal) {
			return out, ErrSealInvalid
		}
	}
	if err := json.Unmarshal(r.Journal, &out); err != nil {
		return out, fmt.Errorf("zkvm: decoding journal: %w", err)
	}
	return out, nil
}

// Encode produces the opaque, byte-stable wire/storage form of a
// receipt. Every other component treats the result as an opaque blob;
// only this package's Encode/Decode pair understands its layout. This
// is the one serialization format that must stay stable across
// releases while verification codes referencing it remain live (see
// DESIGN.md's receipt-format-stability note).
func Encode(r Receipt) ([]byte, error) {
	return json.Marshal(r)
}

// Decode parses bytes produced by Encode.
func Decode(data []byte) (Receipt, error) {
	var r Receipt
	err := json.Unmarshal(data, &r)
	return r, err
}

// signedBytes binds the signature to both the journal and the program
// it was produced under, so a seal cannot be replayed against a
// receipt whose ProgramID field was tampered with independently of
// Verify's own explicit ProgramID check.
func signedBytes(journal []byte) []byte {
	msg := make([]byte, 0, len(ProgramID)+len(journal))
	msg = append(msg, ProgramID[:]...)
	msg = append(msg, journal...)
	return msg
}
