package memoryinfra

import (
	"testing"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{2, 0}, []float32{5, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Degenerate inputs rank last instead of erroring
	assert.Zero(t, cosineSimilarity(nil, []float32{1}))
	assert.Zero(t, cosineSimilarity([]float32{1, 2}, []float32{1}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestRankBySimilarity(t *testing.T) {
	mem := func(id string, v []float32) memory.ExtendedMemory {
		return memory.ExtendedMemory{
			MemoryID:            kernel.NewMemoryID(id),
			UserID:              kernel.NewUserID("u1"),
			ConversationSummary: id,
			Embedding:           v,
		}
	}

	candidates := []memory.ExtendedMemory{
		mem("orthogonal", []float32{0, 1, 0}),
		mem("exact", []float32{1, 0, 0}),
		mem("no-vector", nil),
		mem("close", []float32{0.9, 0.1, 0}),
	}

	matches := rankBySimilarity(candidates, []float32{1, 0, 0}, 0)
	require.Len(t, matches, 3)
	assert.Equal(t, "exact", matches[0].ConversationSummary)
	assert.Equal(t, "close", matches[1].ConversationSummary)
	assert.Equal(t, "orthogonal", matches[2].ConversationSummary)

	limited := rankBySimilarity(candidates, []float32{1, 0, 0}, 2)
	assert.Len(t, limited, 2)

	empty := rankBySimilarity(nil, []float32{1, 0, 0}, 5)
	assert.Empty(t, empty)
}

func TestMarshalJSONNormalizesEmpty(t *testing.T) {
	for name, v := range map[string]any{
		"nil":       nil,
		"empty map": map[string]any{},
		"nil slice": []string(nil),
	} {
		s, err := marshalJSON(v)
		require.NoError(t, err, name)
		assert.Nil(t, s, name)
	}

	s, err := marshalJSON(map[string]any{"a": "1"})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.JSONEq(t, `{"a":"1"}`, *s)
}

func TestUnmarshalJSONNil(t *testing.T) {
	var dst map[string]any
	require.NoError(t, unmarshalJSON(nil, &dst))
	assert.Nil(t, dst)

	payload := `{"k":"v"}`
	require.NoError(t, unmarshalJSON(&payload, &dst))
	assert.Equal(t, "v", dst["k"])
}
