package router

import (
	"context"
	"strings"

	"gas-assistant/internal/llmservice"
	"gas-assistant/internal/metrics"
	"gas-assistant/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"
)

// Category is the closed set of responders a query can be routed to.
type Category int

const (
	QA Category = iota
	DomainExpert
	Watch
	Visualization
)

// Categories lists every category in routing order.
var Categories = []Category{DomainExpert, Watch, Visualization, QA}

func (c Category) String() string {
	switch c {
	case DomainExpert:
		return "expert_gaz"
	case Watch:
		return "veille"
	case Visualization:
		return "visualisation"
	default:
		return "qa"
	}
}

// synonyms maps normalized router labels to categories.
var synonyms = map[string]Category{
	"expert_gaz":    DomainExpert,
	"veille":        Watch,
	"visualisation": Visualization,
	"visualization": Visualization,
	"qa":            QA,
	"q&a":           QA,
	"question":      QA,
}

// ParseCategory maps a raw label to a category. Labels outside the synonym
// table map to QA with ok=false.
func ParseCategory(label string) (Category, bool) {
	c, ok := synonyms[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return QA, false
	}
	return c, true
}

// Decision is the outcome of routing one query.
type Decision struct {
	Category Category
	// Label is the raw model output.
	Label   string
	Matched bool
}

// Router picks a responder with a single zero-temperature model call.
type Router struct {
	llm    llmservice.Generator
	prompt prompts.PromptTemplate
}

func New(llm llmservice.Generator) *Router {
	return &Router{
		llm:    llm,
		prompt: prompts.NewPromptTemplate(models.RouterPromptTemplate, []string{"query"}),
	}
}

// Route never fails: a model error or an unknown label routes to QA.
func (r *Router) Route(ctx context.Context, query string) Decision {
	prompt, err := r.prompt.Format(map[string]any{"query": query})
	if err != nil {
		log.Error().Err(err).Msg("Router prompt rendering failed")
		return Decision{Category: QA}
	}

	label, err := r.llm.Generate(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("Router call failed, routing to qa")
		return Decision{Category: QA}
	}

	category, ok := ParseCategory(label)
	if !ok {
		metrics.RouterUnmatched.Inc()
		log.Warn().Str("label", label).Msg("Router label not recognized, routing to qa")
	}
	log.Debug().Str("label", strings.TrimSpace(label)).Stringer("category", category).Msg("Query routed")
	return Decision{Category: category, Label: label, Matched: ok}
}
