package agents

import (
	"context"

	"gas-assistant/internal/llmservice"
	"gas-assistant/internal/models"
	"gas-assistant/internal/rag"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/tools"
)

// Expert answers technical gas questions, grounded on indexed documents
// when the search returns any.
type Expert struct {
	llm         llmservice.Generator
	search      Searcher
	limit       int
	simple      prompts.PromptTemplate
	withContext prompts.PromptTemplate
}

// NewExpert builds the domain expert. search may be nil, in which case the
// expert answers from the model alone.
func NewExpert(llm llmservice.Generator, search Searcher, contextLimit int) *Expert {
	if contextLimit <= 0 {
		contextLimit = rag.DefaultLimit
	}
	return &Expert{
		llm:         llm,
		search:      search,
		limit:       contextLimit,
		simple:      promptTemplate(models.ExpertPromptTemplate, "gaz_expert", "query"),
		withContext: promptTemplate(models.ExpertRAGPromptTemplate, "gaz_expert", "query", "context"),
	}
}

func (e *Expert) Name() string { return "expert_gaz" }

func (e *Expert) Process(ctx context.Context, req Request) (string, error) {
	return e.answer(ctx, req.Query, req.Query)
}

// answer retrieves with searchQuery and asks the model about query.
func (e *Expert) answer(ctx context.Context, searchQuery, query string) (string, error) {
	var results []models.SearchResult
	if e.search != nil {
		results = e.search.Search(ctx, searchQuery, e.limit)
	}
	if len(results) == 0 {
		log.Debug().Str("query", searchQuery).Msg("No supporting documents, answering without context")
		return generate(ctx, e.llm, e.Name(), e.simple, map[string]any{"query": query})
	}

	log.Debug().Int("documents", len(results)).Msg("Answering with retrieved context")
	return generate(ctx, e.llm, e.Name(), e.withContext, map[string]any{
		"query":   query,
		"context": rag.FormatContext(results),
	})
}

func (e *Expert) Tools() []tools.Tool {
	return []tools.Tool{
		NewTool(ToolDistribution, "Outil permettant d'obtenir des informations sur la distribution du gaz",
			func(ctx context.Context, q string) (string, error) {
				return e.answer(ctx, "distribution gaz "+q, q)
			}),
		NewTool(ToolSafety, "Outil permettant d'obtenir des informations sur la sécurité des installations gazières",
			func(ctx context.Context, q string) (string, error) {
				return e.answer(ctx, "sécurité gaz "+q, "Concernant la sécurité gazière: "+q)
			}),
		NewTool(ToolRegulation, "Outil permettant d'obtenir des informations sur la réglementation gazière",
			func(ctx context.Context, q string) (string, error) {
				return e.answer(ctx, "réglementation gaz "+q, "Concernant la réglementation gazière: "+q)
			}),
	}
}
