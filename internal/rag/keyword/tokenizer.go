package keyword

import (
	"strings"
	"unicode"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "were": true, "will": true,
	"with": true, "this": true, "but": true, "they": true, "have": true,
	"had": true, "what": true, "when": true, "where": true, "who": true, "which": true,
	"why": true, "how": true, "all": true, "any": true, "each": true, "or": true,
	"so": true, "than": true, "too": true, "very": true, "can": true, "did": true,
	"do": true, "does": true, "i": true, "my": true, "me": true, "we": true, "our": true,
	"you": true, "your": true, "if": true, "into": true, "there": true, "then": true,
}

// Tokenize lowercases, splits on anything that is not a letter or digit, drops stop words
// and strips common English suffixes so "connectors" matches "connector".
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if stopWords[f] {
			continue
		}
		out = append(out, stem(f))
	}
	return out
}

func stem(word string) string {
	if len(word) <= 3 {
		return word
	}
	switch {
	case strings.HasSuffix(word, "sses"):
		word = word[:len(word)-2]
	case strings.HasSuffix(word, "ies"):
		word = word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "ss"):
	case strings.HasSuffix(word, "s"):
		word = word[:len(word)-1]
	}

	switch {
	case strings.HasSuffix(word, "ing") && len(word) > 5:
		word = word[:len(word)-3]
	case strings.HasSuffix(word, "ed") && len(word) > 4:
		word = word[:len(word)-2]
	}
	return word
}
