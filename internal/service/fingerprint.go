package service

import (
	"crypto/sha256"
	"encoding/hex"
)

const fingerprintLength = 16

// Fingerprint returns the dedup key for feedback content: the first 16 hex characters of
// SHA-256 over "source:title:body".
func Fingerprint(source, title, body string) string {
	sum := sha256.Sum256([]byte(source + ":" + title + ":" + body))

	return hex.EncodeToString(sum[:])[:fingerprintLength]
}
