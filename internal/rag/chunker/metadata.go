package chunker

import (
	"math"
	"strings"

	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// describe computes the retrieval metadata from what the retriever will actually see.
func describe(chunkText string) commonModels.ChunkMetadata {
	var meta commonModels.ChunkMetadata
	src := []byte(chunkText)
	root := markdown.Parser().Parse(text.NewReader(src))

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading:
			meta.HasHeaders = true
		case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindCodeSpan:
			meta.HasCode = true
		case extast.KindTable:
			meta.HasTables = true
		}
		return ast.WalkContinue, nil
	})

	words := strings.Fields(chunkText)
	meta.WordCount = len(words)
	meta.QualityScore = qualityScore(words, meta)
	return meta
}

// qualityScore rewards chunks that are long enough to answer from, lexically varied and
// structured. Result is within [0,1] and rounded so it is stable across platforms.
func qualityScore(words []string, meta commonModels.ChunkMetadata) float64 {
	if len(words) == 0 {
		return 0
	}
	length := math.Min(1, float64(len(words))/150)

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[strings.ToLower(strings.Trim(w, ".,;:!?()[]{}\"'`"))] = struct{}{}
	}
	diversity := float64(len(unique)) / float64(len(words))

	score := 0.5*length + 0.3*diversity
	if meta.HasHeaders {
		score += 0.1
	}
	if meta.HasCode {
		score += 0.1
	}
	if len(words) < 20 {
		score *= 0.5
	}
	score = math.Max(0, math.Min(1, score))
	return math.Round(score*1000) / 1000
}
