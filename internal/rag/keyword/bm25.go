package keyword

import (
	"context"
	"math"
	"sync"

	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type bm25Doc struct {
	chunk  commonModels.Chunk
	terms  map[string]int
	length int
}

// BM25 is an exact Okapi BM25 scorer over an in-memory inverted index.
type BM25 struct {
	mu       sync.RWMutex
	docs     map[string]*bm25Doc
	postings map[string]map[string]int //term -> chunk id -> term frequency
	totalLen int
}

func NewBM25() *BM25 {
	return &BM25{
		docs:     make(map[string]*bm25Doc),
		postings: make(map[string]map[string]int),
	}
}

func (b *BM25) Add(chunks []commonModels.Chunk) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range chunks {
		b.remove(ch.ChunkId)

		tokens := Tokenize(ch.Title + " " + ch.Text)
		terms := make(map[string]int, len(tokens))
		for _, t := range tokens {
			terms[t]++
		}
		b.docs[ch.ChunkId] = &bm25Doc{chunk: ch, terms: terms, length: len(tokens)}
		b.totalLen += len(tokens)
		for t, tf := range terms {
			p, ok := b.postings[t]
			if !ok {
				p = make(map[string]int)
				b.postings[t] = p
			}
			p[ch.ChunkId] = tf
		}
	}
	return nil
}

// remove expects the write lock to be held.
func (b *BM25) remove(id string) {
	old, ok := b.docs[id]
	if !ok {
		return
	}
	for t := range old.terms {
		delete(b.postings[t], id)
		if len(b.postings[t]) == 0 {
			delete(b.postings, t)
		}
	}
	b.totalLen -= old.length
	delete(b.docs, id)
}

func (b *BM25) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs = make(map[string]*bm25Doc)
	b.postings = make(map[string]map[string]int)
	b.totalLen = 0
	return nil
}

func (b *BM25) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.docs)
}

func (b *BM25) Search(ctx context.Context, query string, n int) ([]commonModels.SearchCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.docs) == 0 {
		return nil, nil
	}
	avgLen := float64(b.totalLen) / float64(len(b.docs))
	if avgLen == 0 {
		avgLen = 1
	}
	total := float64(len(b.docs))

	seen := make(map[string]bool)
	scores := make(map[string]float64)
	for _, term := range Tokenize(query) {
		if seen[term] {
			continue
		}
		seen[term] = true
		posting := b.postings[term]
		if len(posting) == 0 {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1 + (total-df+0.5)/(df+0.5))
		for id, tf := range posting {
			docLen := float64(b.docs[id].length)
			f := float64(tf)
			scores[id] += idf * f * (bm25K1 + 1) / (f + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
		}
	}

	out := make([]commonModels.SearchCandidate, 0, len(scores))
	for id, s := range scores {
		out = append(out, commonModels.SearchCandidate{
			ChunkId:  id,
			Method:   commonModels.MethodKeyword,
			RawScore: s,
			Chunk:    b.docs[id].chunk,
		})
	}
	return rank(out, n), nil
}
