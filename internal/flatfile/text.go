// Package flatfile reads and writes a collection as three plain-text files: the
// entries themselves, their repetition data and the study settings.
package flatfile

import (
	"errors"
	"fmt"
	"strings"
)

var ErrBadText = errors.New("malformed stored text")

const (
	storedNewline   = `\n`
	storedBackslash = `\\`
)

// EncodeText renders multi-line text as a single quoted field. Leading blank lines
// and trailing whitespace are dropped, tabs become spaces.
func EncodeText(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", " ")
	lines := strings.Split(s, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for i := range lines {
		lines[i] = strings.ReplaceAll(strings.TrimRight(lines[i], " "), `\`, storedBackslash)
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return `"` + strings.Join(lines, storedNewline) + `"`
}

// DecodeText reverses EncodeText.
func DecodeText(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("%w: %q is not quoted", ErrBadText, s)
	}
	var b strings.Builder
	escaped := false
	for _, r := range s[1 : len(s)-1] {
		if !escaped {
			if r == '\\' {
				escaped = true
			} else {
				b.WriteRune(r)
			}
			continue
		}
		escaped = false
		switch r {
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		default:
			return "", fmt.Errorf("%w: unknown escape \\%c", ErrBadText, r)
		}
	}
	if escaped {
		return "", fmt.Errorf("%w: dangling backslash", ErrBadText)
	}
	return b.String(), nil
}
