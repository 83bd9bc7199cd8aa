package chunker

import (
	"strings"
)

type segmentKind int

const (
	segmentText segmentKind = iota
	segmentCode
	segmentTable
	segmentList
)

func (k segmentKind) atomic() bool {
	return k != segmentText
}

// segment is a run of lines that either can be split freely (text) or must stay whole.
type segment struct {
	kind  segmentKind
	lines []string
}

func (s segment) text() string {
	return strings.Trim(strings.Join(s.lines, "\n"), "\n")
}

// scanSegments walks the document line by line and cuts out code fences, tables and
// list blocks. Everything else is grouped into text segments.
func scanSegments(doc string) []segment {
	lines := strings.Split(doc, "\n")
	var out []segment
	var text []string

	flushText := func() {
		if len(text) > 0 && strings.TrimSpace(strings.Join(text, "")) != "" {
			out = append(out, segment{kind: segmentText, lines: text})
		}
		text = nil
	}

	for i := 0; i < len(lines); {
		line := lines[i]
		if marker, ok := fenceOpen(line); ok {
			flushText()
			end := i + 1
			for end < len(lines) && !fenceClose(lines[end], marker) {
				end++
			}
			if end < len(lines) {
				end++ //include the closing fence
			}
			out = append(out, segment{kind: segmentCode, lines: lines[i:end]})
			i = end
			continue
		}

		if isTableRow(line) && i+1 < len(lines) && isTableRow(lines[i+1]) {
			flushText()
			end := i
			for end < len(lines) && isTableRow(lines[end]) {
				end++
			}
			out = append(out, segment{kind: segmentTable, lines: lines[i:end]})
			i = end
			continue
		}

		if isListItem(line) {
			flushText()
			end := i + 1
			for end < len(lines) && (isListItem(lines[end]) || isContinuation(lines[end])) {
				end++
			}
			out = append(out, segment{kind: segmentList, lines: lines[i:end]})
			i = end
			continue
		}

		text = append(text, line)
		i++
	}
	flushText()
	return out
}

func leadingSpaces(line string) int {
	n := 0
	for n < len(line) && line[n] == ' ' {
		n++
	}
	return n
}

// fenceOpen reports the fence marker (``` or ~~~, any length >= 3) that opens a code block.
func fenceOpen(line string) (string, bool) {
	if leadingSpaces(line) > 3 {
		return "", false
	}
	trimmed := strings.TrimLeft(line, " ")
	if len(trimmed) < 3 {
		return "", false
	}
	c := trimmed[0]
	if c != '`' && c != '~' {
		return "", false
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == c {
		n++
	}
	if n < 3 {
		return "", false
	}
	if c == '`' && strings.Contains(trimmed[n:], "`") {
		return "", false
	}
	return trimmed[:n], true
}

func fenceClose(line string, marker string) bool {
	if leadingSpaces(line) > 3 {
		return false
	}
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, marker) {
		return false
	}
	return strings.Trim(trimmed, marker[:1]) == ""
}

func isTableRow(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "|")
}

func isListItem(line string) bool {
	if leadingSpaces(line) > 3 {
		return false
	}
	trimmed := strings.TrimLeft(line, " ")
	if len(trimmed) < 2 {
		return false
	}
	switch trimmed[0] {
	case '-', '*', '+':
		return trimmed[1] == ' ' || trimmed[1] == '\t'
	}
	n := 0
	for n < len(trimmed) && trimmed[n] >= '0' && trimmed[n] <= '9' {
		n++
	}
	if n == 0 || n > 9 || n+1 >= len(trimmed) {
		return false
	}
	return (trimmed[n] == '.' || trimmed[n] == ')') && (trimmed[n+1] == ' ' || trimmed[n+1] == '\t')
}

// isContinuation is an indented, non blank line that belongs to the preceding list item.
func isContinuation(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	return strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t")
}

// listItems splits a list block into its items, continuation lines stay with their item.
func listItems(lines []string) []string {
	var items []string
	var cur []string
	for _, line := range lines {
		if isListItem(line) && len(cur) > 0 {
			items = append(items, strings.Join(cur, "\n"))
			cur = nil
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		items = append(items, strings.Join(cur, "\n"))
	}
	return items
}
