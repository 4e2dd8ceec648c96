package hashing

import "crypto/sha256"

// SHA256 computes the SHA256 hash of data
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}
