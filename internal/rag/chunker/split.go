package chunker

import (
	"strings"
)

// piece is the unit the merger packs into chunks. joiner goes in front of the piece when it
// is appended to a chunk that already has content.
type piece struct {
	text      string
	tokens    int
	joiner    string
	oversized bool
	// verbatim marks code fences and tables, which must never be cut by an overlap prefix
	verbatim bool
}

type separator struct {
	joiner string
	split  func(string) []string
}

// ordered from coarse to fine, the splitter only descends while a part is still too big
var separators = []separator{
	{joiner: "\n", split: splitOnHeaders},
	{joiner: "\n\n", split: func(s string) []string { return strings.Split(s, "\n\n") }},
	{joiner: "\n", split: func(s string) []string { return strings.Split(s, "\n") }},
	{joiner: " ", split: splitOnSentences},
	{joiner: " ", split: strings.Fields},
}

func isHeaderLine(line string) bool {
	if leadingSpaces(line) > 3 {
		return false
	}
	trimmed := strings.TrimLeft(line, " ")
	n := 0
	for n < len(trimmed) && trimmed[n] == '#' {
		n++
	}
	return n > 0 && n <= 6 && (n == len(trimmed) || trimmed[n] == ' ')
}

// splitOnHeaders starts a new part at every markdown header line.
func splitOnHeaders(s string) []string {
	lines := strings.Split(s, "\n")
	var parts []string
	var cur []string
	for _, line := range lines {
		if isHeaderLine(line) && len(cur) > 0 {
			parts = append(parts, strings.Join(cur, "\n"))
			cur = nil
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		parts = append(parts, strings.Join(cur, "\n"))
	}
	return parts
}

func splitOnSentences(s string) []string {
	var parts []string
	for _, p := range strings.SplitAfter(s, ". ") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// splitText recursively breaks text into pieces of at most limit tokens.
func splitText(text string, limit int, level int, joiner string) []piece {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	n := countTokens(text)
	if n <= limit || level >= len(separators) {
		return []piece{{text: text, tokens: n, joiner: joiner}}
	}

	sep := separators[level]
	parts := sep.split(text)
	if len(parts) <= 1 {
		return splitText(text, limit, level+1, joiner)
	}

	var out []piece
	for _, part := range parts {
		j := sep.joiner
		if len(out) == 0 {
			j = joiner
		}
		out = append(out, splitText(part, limit, level+1, j)...)
	}
	return out
}

// segmentPieces turns one scanned segment into pieces. budget is the room a chunk has for its
// own content, ceiling is the hard limit an atomic block may use when it stands alone.
func segmentPieces(seg segment, budget int, ceiling int, joiner string) []piece {
	text := seg.text()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	n := countTokens(text)

	switch seg.kind {
	case segmentText:
		return splitText(text, budget, 0, joiner)

	case segmentList:
		if n <= budget {
			return []piece{{text: text, tokens: n, joiner: joiner}}
		}
		var out []piece
		for _, item := range listItems(seg.lines) {
			j := "\n"
			if len(out) == 0 {
				j = joiner
			}
			out = append(out, splitText(item, budget, 1, j)...)
		}
		return out

	default: //code and tables never get split
		return []piece{{text: text, tokens: n, joiner: joiner, oversized: n > ceiling, verbatim: true}}
	}
}
