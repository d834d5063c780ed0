package embedding

import (
	"context"
	"testing"

	"gas-assistant/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"
)

func TestChromemFunc(t *testing.T) {
	var got []string
	client := embeddings.EmbedderClientFunc(func(_ context.Context, texts []string) ([][]float32, error) {
		got = append(got, texts...)
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 0, 0}
		}
		return out, nil
	})
	e, err := embeddings.NewEmbedder(client)
	require.NoError(t, err)

	vec, err := ChromemFunc(e)(context.Background(), "compteur gaz")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)
	assert.Equal(t, []string{"compteur gaz"}, got)
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(config.LLMConfig{Provider: "nope"})
	assert.Error(t, err)
}
