package memoryinfra

import (
	"math"
	"sort"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
)

// cosineSimilarity returns the cosine of the angle between two vectors.
// Returns 0 when either vector is empty, zero-length, or the dimensions
// disagree; such records simply rank last instead of failing the search.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rankBySimilarity scores candidate records against the query embedding
// and returns the top matches, best first. Records without an embedding
// are skipped. Every backend delegates here so ranking is identical
// regardless of engine.
func rankBySimilarity(candidates []memory.ExtendedMemory, query []float32, limit int) []memory.MemoryMatch {
	matches := make([]memory.MemoryMatch, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			continue
		}
		matches = append(matches, memory.MemoryMatch{
			ExtendedMemory: c,
			Score:          cosineSimilarity(c.Embedding, query),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
