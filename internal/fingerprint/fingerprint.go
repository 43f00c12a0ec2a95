// Package fingerprint derives content identities for uploaded documents.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Size is the length of a fingerprint in hex characters.
const Size = sha256.Size * 2

// Fingerprint is the hex SHA-256 digest of a document's raw bytes. It is the
// join key between the index cache, the blob store and conversation records.
type Fingerprint string

// Of returns the fingerprint of data.
func Of(data []byte) Fingerprint {
	sum := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// Parse validates s as a fingerprint. Upper-case hex is rejected so that a
// document has exactly one spelling.
func Parse(s string) (Fingerprint, error) {
	if len(s) != Size {
		return "", fmt.Errorf("fingerprint must be %d hex characters, got %d", Size, len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return "", fmt.Errorf("fingerprint contains invalid character %q", c)
		}
	}
	return Fingerprint(s), nil
}

func (f Fingerprint) String() string { return string(f) }

// Short returns the first 12 characters, for logs.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}
