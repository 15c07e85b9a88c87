// Package identity derives stable content keys for deduplication.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// keyLength is the number of hex characters kept from the digest.
// 16 hex chars of a SHA-256 digest is ample entropy for this domain.
const keyLength = 16

// DeriveKey returns a stable content key for an article identified by its
// title and source URL. The title is normalized (lowercased, internal
// whitespace collapsed, trimmed) so that cosmetic differences do not produce
// distinct keys; the URL is included verbatim so the same headline from two
// different articles stays distinct.
func DeriveKey(title, url string) string {
	sum := sha256.Sum256([]byte(Normalize(title) + "|" + url))
	return hex.EncodeToString(sum[:])[:keyLength]
}

// Normalize lowercases the title, collapses runs of whitespace to single
// spaces, and trims the result.
func Normalize(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
