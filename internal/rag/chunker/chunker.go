// Package chunker splits documents into bounded, overlapping chunks. Code fences, tables and
// list blocks are treated as indivisible; a code fence or table bigger than the ceiling is
// emitted on its own and flagged oversized instead of being truncated.
package chunker

import (
	"strconv"
	"strings"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
	"github.com/google/uuid"
)

var chunkNamespace = uuid.MustParse(config.ChunkNamespace)

// ChunkID is stable for a (document, ordinal) pair so re-ingestion can skip known chunks.
func ChunkID(documentId string, ordinal int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(documentId+"#"+strconv.Itoa(ordinal))).String()
}

type Chunker struct {
	size    int
	overlap int
	logger  *logger_i.Logger
}

// New panics on nonsense sizes, config.Settings.Validate rules them out for real callers.
func New(size int, overlap int) *Chunker {
	if size < 1 || overlap < 0 || overlap >= size {
		panic("chunker: invalid size/overlap " + strconv.Itoa(size) + "/" + strconv.Itoa(overlap))
	}
	return &Chunker{
		size:    size,
		overlap: overlap,
		logger:  logger_i.NewLogger("chunker"),
	}
}

func FromSettings(s config.Settings) *Chunker {
	return New(s.ChunkSize, s.ChunkOverlap)
}

type draft struct {
	text      string
	tokens    int
	oversized bool
	// tail is the text after the last code fence or table, the only part the next chunk
	// may repeat as overlap
	tail string
}

// Chunk is deterministic: the same document and parameters always give the same chunks.
func (c *Chunker) Chunk(doc commonModels.Document) []commonModels.Chunk {
	normalized := strings.TrimSpace(strings.ReplaceAll(doc.RawText, "\r\n", "\n"))
	if normalized == "" {
		return nil
	}

	var drafts []draft
	if n := countTokens(normalized); n <= c.size {
		drafts = []draft{{text: normalized, tokens: n, tail: normalized}}
	} else {
		drafts = c.pack(c.pieces(normalized))
	}

	chunks := make([]commonModels.Chunk, 0, len(drafts))
	for i, d := range drafts {
		body := d.text
		overlap := 0
		if i > 0 && !d.oversized {
			prefix, k := c.overlapPrefix(drafts[i-1].tail, d.tokens)
			if k > 0 {
				body = prefix + "\n" + d.text
				overlap = k
			}
		}
		if d.oversized {
			c.logger.Warn("oversized atomic block kept whole", "document", doc.Id, "ordinal", i, "tokens", d.tokens, "ceiling", c.size)
		}

		chunks = append(chunks, commonModels.Chunk{
			ChunkId:         ChunkID(doc.Id, i),
			DocumentId:      doc.Id,
			SourceURL:       doc.SourceURL,
			Title:           doc.Title,
			DocType:         doc.DocType,
			Ordinal:         i,
			TotalChunks:     len(drafts),
			Text:            body,
			TokenCount:      d.tokens + overlap,
			OverlapWithPrev: overlap,
			Oversized:       d.oversized,
			ChunkMetadata:   describe(body),
		})
	}
	return chunks
}

// budget leaves room in every chunk for the overlap prefix.
func (c *Chunker) budget() int {
	return c.size - c.overlap
}

func (c *Chunker) pieces(doc string) []piece {
	var out []piece
	for _, seg := range scanSegments(doc) {
		joiner := "\n\n"
		if len(out) == 0 {
			joiner = ""
		}
		out = append(out, segmentPieces(seg, c.budget(), c.size, joiner)...)
	}
	return out
}

// pack greedily merges pieces into chunk drafts without crossing the budget.
func (c *Chunker) pack(pieces []piece) []draft {
	var drafts []draft
	var cur strings.Builder
	curTokens := 0
	tailStart := 0

	flush := func() {
		if curTokens > 0 {
			text := cur.String()
			drafts = append(drafts, draft{text: text, tokens: curTokens, tail: text[tailStart:]})
		}
		cur.Reset()
		curTokens = 0
		tailStart = 0
	}

	for _, p := range pieces {
		if p.oversized {
			flush()
			drafts = append(drafts, draft{text: p.text, tokens: p.tokens, oversized: true})
			continue
		}
		if curTokens > 0 && curTokens+p.tokens > c.budget() {
			flush()
		}
		if curTokens > 0 {
			cur.WriteString(p.joiner)
		}
		cur.WriteString(p.text)
		curTokens += p.tokens
		if p.verbatim {
			tailStart = cur.Len()
		}
	}
	flush()
	return drafts
}

// overlapPrefix takes the end of the previous chunk's prose, shrunk so the result stays under
// the ceiling. A chunk ending in a code fence or table gives no overlap.
func (c *Chunker) overlapPrefix(prev string, ownTokens int) (string, int) {
	want := min(c.overlap, c.size-ownTokens)
	if want <= 0 {
		return "", 0
	}
	return tailTokens(prev, want)
}
