package app

import (
	"context"
	"path/filepath"
	"testing"

	"gas-assistant/internal/config"
	"gas-assistant/internal/orchestrator"
	"gas-assistant/internal/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.BaseURL = "http://127.0.0.1:1"
	cfg.EmbedLLM.Provider = "ollama"
	cfg.EmbedLLM.BaseURL = "http://127.0.0.1:1"
	cfg.RAG.InMemory = true
	cfg.Storage.UploadDir = filepath.Join(dir, "uploads")
	cfg.Storage.DocumentIndexPath = filepath.Join(dir, "document_index.json")
	return cfg
}

func TestNew(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Pipeline)
	assert.NotNil(t, a.Search)
	assert.NotNil(t, a.Vectors)

	g1, err := a.Graph()
	require.NoError(t, err)
	g2, err := a.Graph()
	require.NoError(t, err)
	assert.Same(t, g1, g2)
	assert.Equal(t, "expert_gaz", g1.Responder(router.DomainExpert).Name())
	assert.Len(t, g1.Responder(router.QA).Tools(), 7)
}

func TestNew_UnknownBackends(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "s3"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Index.Backend = "faiss"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestBuildGraph_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "mistral"
	_, err := BuildGraph(cfg, nil)
	assert.ErrorIs(t, err, orchestrator.ErrGraphInit)
}
