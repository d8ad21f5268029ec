package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize canonicalizes a raw email into the join key every component
// compares on: trimmed and lower-cased. Total by design — invalid input
// normalizes to the empty string, which matches nothing.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Fingerprint returns a short stable hash of the normalized identity, safe
// to put in logs and metrics where the raw email is not.
func Fingerprint(raw string) string {
	normalized := Normalize(raw)
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:6])
}
