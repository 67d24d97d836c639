// ABOUTME: Content fingerprinting for idempotent push sync
// ABOUTME: Unchanged fingerprints mean the remote write can be skipped
package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash fingerprints the synchronizable fields of a contact. Two
// contacts with the same name, email, and phone always hash identically, so
// a successful sync followed by no edits yields zero remote writes.
func ContentHash(name, email, phone string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(name))))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(email))))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(phone)))
	return hex.EncodeToString(h.Sum(nil))
}
