package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gas-assistant/internal/agents"
	"gas-assistant/internal/llmservice"
	"gas-assistant/internal/metrics"
	"gas-assistant/internal/models"
	"gas-assistant/internal/router"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"
)

// ErrGraphInit is returned when the graph cannot be built. It is the only
// orchestration error handed to callers.
var ErrGraphInit = errors.New("agent graph initialization failed")

// Router picks the responder category of a query.
type Router interface {
	Route(ctx context.Context, query string) router.Decision
}

// Result is the answer to one query. Degraded is set when a fallback path
// produced Response.
type Result struct {
	Response string          `json:"response"`
	Category router.Category `json:"-"`
	Degraded bool            `json:"degraded"`
	Duration time.Duration   `json:"-"`
}

// Graph runs START -> ROUTE -> responder -> END for each query. It is
// read-only once built and safe for concurrent use.
type Graph struct {
	router     Router
	responders map[router.Category]agents.Responder
	fallback   llmservice.Generator
	prompt     prompts.PromptTemplate
}

// New builds the graph. Every category needs a responder.
func New(r Router, responders map[router.Category]agents.Responder, fallback llmservice.Generator) (*Graph, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no router", ErrGraphInit)
	}
	if fallback == nil {
		return nil, fmt.Errorf("%w: no fallback model", ErrGraphInit)
	}
	g := &Graph{
		router:     r,
		responders: make(map[router.Category]agents.Responder, len(router.Categories)),
		fallback:   fallback,
		prompt:     prompts.NewPromptTemplate(models.FallbackPromptTemplate, []string{"query"}),
	}
	for _, c := range router.Categories {
		resp, ok := responders[c]
		if !ok || resp == nil {
			return nil, fmt.Errorf("%w: no responder for %s", ErrGraphInit, c)
		}
		g.responders[c] = resp
	}
	return g, nil
}

// Responder returns the responder bound to c.
func (g *Graph) Responder(c router.Category) agents.Responder {
	return g.responders[c]
}

// Run routes query and answers it. It always returns non-empty text.
func (g *Graph) Run(ctx context.Context, query string) Result {
	return g.guard(ctx, query, func() (Result, error) {
		decision := g.router.Route(ctx, query)
		return g.respond(ctx, decision.Category, agents.Request{Query: query})
	})
}

// Visualize sends query and data straight to the visualization responder,
// with the same fallbacks as Run.
func (g *Graph) Visualize(ctx context.Context, query, data string) Result {
	return g.guard(ctx, query, func() (Result, error) {
		return g.respond(ctx, router.Visualization, agents.Request{Query: query, Data: data})
	})
}

// respond runs one responder. A responder error is replaced by a direct
// model answer; only the failure of that call is returned.
func (g *Graph) respond(ctx context.Context, c router.Category, req agents.Request) (Result, error) {
	resp := g.responders[c]
	logger := log.With().Stringer("category", c).Logger()

	out, err := resp.Process(ctx, req)
	if err == nil {
		metrics.Queries.WithLabelValues(c.String()).Inc()
		return Result{Response: out, Category: c}, nil
	}

	logger.Error().Err(err).Str("responder", resp.Name()).Msg("Responder failed, answering directly")
	metrics.Fallbacks.WithLabelValues("responder").Inc()
	out, err = g.direct(ctx, req.Query)
	if err != nil {
		return Result{Category: c}, fmt.Errorf("direct answer after %s failure: %w", resp.Name(), err)
	}
	return Result{Response: models.FallbackPrefix + out, Category: c, Degraded: true}, nil
}

func (g *Graph) direct(ctx context.Context, query string) (string, error) {
	prompt, err := g.prompt.Format(map[string]any{"query": query})
	if err != nil {
		return "", err
	}
	return g.fallback.Generate(ctx, prompt)
}

// guard converts any failure of run, panics included, into one last
// generation marked as degraded.
func (g *Graph) guard(ctx context.Context, query string, run func() (Result, error)) (res Result) {
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
	}()

	res, err := safely(run)
	if err == nil && res.Response != "" {
		return res
	}
	if err == nil {
		err = errors.New("empty response")
	}
	log.Error().Err(err).Str("query", query).Msg("Agent graph failed, using fallback")
	metrics.Fallbacks.WithLabelValues("graph").Inc()

	out, ferr := g.direct(ctx, query)
	if ferr != nil || out == "" {
		log.Error().Err(ferr).Msg("Fallback generation failed")
		metrics.Fallbacks.WithLabelValues("unavailable").Inc()
		return Result{Response: models.FallbackPrefix + models.UnavailableMessage, Category: res.Category, Degraded: true}
	}
	return Result{Response: models.FallbackPrefix + out, Category: res.Category, Degraded: true}
}

func safely(run func() (Result, error)) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return run()
}
