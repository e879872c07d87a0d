// Package hashing centralizes the two content digests used across the
// bank: a strong SHA-256 hex digest for identity, conflict detection,
// and dedup grouping, and an xxhash fingerprint for cheap equality
// pre-checks where recomputing SHA-256 would be wasteful.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// Strong returns the SHA-256 hex digest of content. This is the
// content-addressing key: collision resistance matters because two
// different contents mapping to one hash would silently defeat
// conflict detection.
func Strong(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// StrongString is Strong for string inputs.
func StrongString(content string) string {
	return Strong([]byte(content))
}

// Fast returns a 64-bit xxhash fingerprint. Suitable only for quick
// inequality checks (a mismatch proves difference; a match still needs
// Strong confirmation).
func Fast(content []byte) uint64 {
	return xxhash.Sum64(content)
}

// FastString is Fast for string inputs.
func FastString(content string) uint64 {
	return xxhash.Sum64String(content)
}
