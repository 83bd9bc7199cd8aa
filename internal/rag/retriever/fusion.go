package retriever

import (
	"sort"

	"github.com/akolanti/HybridRAG/internal/domain/commonModels"
)

type Weights struct {
	Vector  float64 `json:"vector"`
	Keyword float64 `json:"keyword"`
}

// Fuse merges the two legs into one ranking. Each leg is min-max normalised on its own,
// fused = wv*v + wk*k with a missing leg counting 0. Order is fused score, then results found
// by both legs, then chunk id. Results that score 0 only because their leg has zero weight
// are dropped so a zero weight really turns that leg off.
func Fuse(vector, keyword []commonModels.SearchCandidate, w Weights, topK int) []commonModels.FusedResult {
	byID := make(map[string]*commonModels.FusedResult, len(vector)+len(keyword))
	order := make([]string, 0, len(vector)+len(keyword))

	merge := func(cands []commonModels.SearchCandidate, method commonModels.SearchMethod, weight float64) {
		norm := normalize(cands)
		for i, c := range cands {
			r, ok := byID[c.ChunkId]
			if !ok {
				r = &commonModels.FusedResult{ChunkId: c.ChunkId, Chunk: c.Chunk}
				byID[c.ChunkId] = r
				order = append(order, c.ChunkId)
			}
			if hasMethod(r.MatchedMethods, method) {
				continue
			}
			if method == commonModels.MethodVector {
				r.VectorScore = norm[i]
			} else {
				r.KeywordScore = norm[i]
			}
			if weight > 0 {
				r.MatchedMethods = append(r.MatchedMethods, method)
				r.FusedScore += weight * norm[i]
			}
		}
	}
	merge(vector, commonModels.MethodVector, w.Vector)
	merge(keyword, commonModels.MethodKeyword, w.Keyword)

	results := make([]commonModels.FusedResult, 0, len(order))
	for _, id := range order {
		r := byID[id]
		if len(r.MatchedMethods) == 0 {
			continue
		}
		results = append(results, *r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.FusedScore != b.FusedScore {
			return a.FusedScore > b.FusedScore
		}
		if a.MatchedBoth() != b.MatchedBoth() {
			return a.MatchedBoth()
		}
		return a.ChunkId < b.ChunkId
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// normalize maps raw scores onto [0,1]. A single candidate, or a leg where every score is
// equal, normalises to 1.
func normalize(cands []commonModels.SearchCandidate) []float64 {
	out := make([]float64, len(cands))
	if len(cands) == 0 {
		return out
	}
	lo, hi := cands[0].RawScore, cands[0].RawScore
	for _, c := range cands[1:] {
		lo = min(lo, c.RawScore)
		hi = max(hi, c.RawScore)
	}
	span := hi - lo
	for i, c := range cands {
		if span == 0 {
			out[i] = 1
			continue
		}
		out[i] = (c.RawScore - lo) / span
	}
	return out
}

func hasMethod(methods []commonModels.SearchMethod, m commonModels.SearchMethod) bool {
	for _, x := range methods {
		if x == m {
			return true
		}
	}
	return false
}
