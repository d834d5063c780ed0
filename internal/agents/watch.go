package agents

import (
	"context"
	"errors"

	"gas-assistant/internal/llmservice"
	"gas-assistant/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/tools"
	"github.com/tmc/langchaingo/tools/serpapi"
)

// NewWebSearch returns the SerpAPI tool, or nil when no key is configured.
func NewWebSearch(apiKey string) (tools.Tool, error) {
	if apiKey == "" {
		return nil, nil
	}
	t, err := serpapi.New(serpapi.WithAPIKey(apiKey))
	if errors.Is(err, serpapi.ErrMissingToken) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Watch produces competitive, technology and regulatory watch analyses
// from web search results.
type Watch struct {
	llm    llmservice.Generator
	web    tools.Tool
	prompt prompts.PromptTemplate
}

// NewWatch builds the watch responder. web may be nil.
func NewWatch(llm llmservice.Generator, web tools.Tool) *Watch {
	return &Watch{
		llm:    llm,
		web:    web,
		prompt: promptTemplate(models.VeillePromptTemplate, "veille", "query", "search_results"),
	}
}

func (w *Watch) Name() string { return "veille" }

func (w *Watch) Process(ctx context.Context, req Request) (string, error) {
	return w.analyze(ctx, req.Query, req.Query)
}

// perform runs a web search. Search problems become text for the prompt.
func (w *Watch) perform(ctx context.Context, query string) string {
	if w.web == nil {
		return models.NoWebSearch
	}
	out, err := w.web.Call(ctx, "GRDF "+query)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("Web search failed")
		return "Erreur lors de la recherche: " + err.Error()
	}
	return out
}

func (w *Watch) analyze(ctx context.Context, searchQuery, query string) (string, error) {
	return generate(ctx, w.llm, w.Name(), w.prompt, map[string]any{
		"query":          query,
		"search_results": w.perform(ctx, searchQuery),
	})
}

func (w *Watch) Tools() []tools.Tool {
	return []tools.Tool{
		NewTool(ToolCompetitiveWatch, "Permet d'effectuer une veille concurrentielle dans le secteur du gaz",
			func(ctx context.Context, q string) (string, error) {
				return w.analyze(ctx, "concurrents GRDF "+q, q)
			}),
		NewTool(ToolTechnologyWatch, "Permet d'effectuer une veille technologique liée au gaz",
			func(ctx context.Context, q string) (string, error) {
				return w.analyze(ctx, "innovations technologiques gaz "+q, q)
			}),
		NewTool(ToolRegulatoryWatch, "Permet d'effectuer une veille réglementaire dans le secteur du gaz",
			func(ctx context.Context, q string) (string, error) {
				return w.analyze(ctx, "réglementation gaz France "+q, q)
			}),
	}
}
