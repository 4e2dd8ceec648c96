// Package ids provides the 32-byte identifier type used throughout the
// system for session IDs, user IDs, and till-number hashes.
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/nyakiomaina/mpesa-credit-proof/pkg/crypto/hashing"
)

// ID represents a unique identifier
type ID [32]byte

// FromTillNumber derives the till-number hash committed to a proof
// journal. The hash, not the raw till number, is what ever leaves the
// host: it lets a lender recognize repeat proofs from the same till
// without learning the till number itself.
func FromTillNumber(tillNumber string) ID {
	return ID(hashing.SHA256([]byte(tillNumber)))
}

// New generates a random ID, used for session and transaction-store
// identifiers that carry no semantic binding to caller-supplied data.
func New() ID {
	var id ID
	rand.Read(id[:])
	return id
}

// String returns the hex representation of the ID
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the byte representation of the ID
func (id ID) Bytes() []byte {
	return id[:]
}

// FromString creates an ID from a hex string
func FromString(s string) (ID, error) {
	var id ID
	bytes, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(bytes) != 32 {
		return id, fmt.Errorf("invalid ID length: expected 32, got %d", len(bytes))
	}
	copy(id[:], bytes)
	return id, nil
}