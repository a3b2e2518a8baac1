// Package knol derives the natural key of an entry from its question text.
package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize flattens a question onto one line: line breaks and runs of whitespace
// become single spaces, and surrounding whitespace is dropped. Two questions with the
// same normalized form are the same card.
func Normalize(question string) string {
	return strings.Join(strings.Fields(question), " ")
}

// Hash returns the SHA-256 of the normalized question as a hex string.
// It is the primary key of an entry in storage.
func Hash(question string) string {
	hashBytes := sha256.Sum256([]byte(Normalize(question)))
	return fmt.Sprintf("%x", hashBytes)
}

// Same reports whether two questions collide.
func Same(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
