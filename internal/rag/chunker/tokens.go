package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// A token is a whitespace delimited word. Cheap, deterministic and close enough to
// model tokenizers for sizing chunks.
func countTokens(s string) int {
	return len(strings.Fields(s))
}

// tailTokens returns the suffix of s that starts at its n-th last token, keeping the
// original formatting of that suffix, and the number of tokens it holds.
func tailTokens(s string, n int) (string, int) {
	if n <= 0 {
		return "", 0
	}
	seen := 0
	inToken := false
	start := len(s)
	for i := len(s); i > 0; {
		r, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
		if !unicode.IsSpace(r) {
			inToken = true
			start = i
			continue
		}
		if inToken {
			seen++
			inToken = false
			if seen == n {
				return s[start:], seen
			}
		}
	}
	if inToken {
		seen++
	}
	return strings.TrimLeftFunc(s, unicode.IsSpace), seen
}
