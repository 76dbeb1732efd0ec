// Package hash provides hashing utilities.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// SHA256 computes the SHA256 hash of data and returns it as a hex string.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256String computes the SHA256 hash of a string.
func SHA256String(s string) string {
	return SHA256([]byte(s))
}

// SHA256Short returns the first n characters of a SHA256 hash.
func SHA256Short(data []byte, n int) string {
	h := SHA256(data)
	if n > len(h) {
		return h
	}
	return h[:n]
}

// PlanKey generates a deterministic cache key for a planning call from the
// query text, the schema fingerprint, and the requested execution mode.
func PlanKey(query, schemaFingerprint, mode string) string {
	return SHA256String(query + "|" + schemaFingerprint + "|" + mode)
}

// SetFingerprint hashes a group of string sets into a stable fingerprint.
// Each set is sorted before hashing so equal sets produce equal fingerprints
// regardless of source ordering.
func SetFingerprint(sets ...[]string) string {
	var b strings.Builder
	for _, set := range sets {
		sorted := make([]string, len(set))
		copy(sorted, set)
		sort.Strings(sorted)
		b.WriteString(strings.Join(sorted, ","))
		b.WriteByte(';')
	}
	return SHA256Short([]byte(b.String()), 32)
}
