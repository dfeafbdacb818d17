package calls

import (
	"crypto/rand"
	"fmt"
)

// Codes avoid lowercase so users can read them aloud without ambiguity.
const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// newCode draws a random call code. Uniqueness against live sessions is the
// Store's job; over the realistic session count the birthday bound makes a
// handful of redraws more than enough.
func newCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("draw call code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
