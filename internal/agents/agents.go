package agents

import (
	"context"
	"errors"
	"fmt"

	"gas-assistant/internal/llmservice"
	"gas-assistant/internal/metrics"
	"gas-assistant/internal/models"

	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/tools"
)

// ErrResponder marks a failure inside a responder.
var ErrResponder = errors.New("responder failed")

// Request is the input of a responder. Data is only read by the
// visualization responder.
type Request struct {
	Query string
	Data  string
}

// Responder answers a routed query.
type Responder interface {
	Name() string
	Process(ctx context.Context, req Request) (string, error)
	Tools() []tools.Tool
}

// ToolName is the closed set of sub-task names offered by responders.
type ToolName string

const (
	ToolDistribution     ToolName = "distribution_gaz_info"
	ToolSafety           ToolName = "securite_gaz_info"
	ToolRegulation       ToolName = "reglementation_gaz_info"
	ToolCompetitiveWatch ToolName = "veille_concurrentielle"
	ToolTechnologyWatch  ToolName = "veille_technologique"
	ToolRegulatoryWatch  ToolName = "veille_reglementaire"
	ToolChart            ToolName = "create_chart"
	ToolExcel            ToolName = "create_excel"
	ToolReport           ToolName = "create_report"
	ToolAnswer           ToolName = "answer_question"
)

// Searcher retrieves supporting chunks; rag.Service satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) []models.SearchResult
}

// Tool is a named responder sub-task usable by the QA tool loop.
type Tool struct {
	name         ToolName
	description  string
	returnDirect bool
	fn           func(ctx context.Context, input string) (string, error)
}

var _ tools.Tool = Tool{}

func NewTool(name ToolName, description string, fn func(ctx context.Context, input string) (string, error)) Tool {
	return Tool{name: name, description: description, fn: fn}
}

func (t Tool) Name() string        { return string(t.name) }
func (t Tool) Description() string { return t.description }

// ReturnDirect reports whether the tool output ends the QA loop as is.
func (t Tool) ReturnDirect() bool { return t.returnDirect }

func (t Tool) Call(ctx context.Context, input string) (string, error) {
	metrics.ToolCalls.WithLabelValues(string(t.name)).Inc()
	return t.fn(ctx, input)
}

// FindTool returns the tool called name.
func FindTool(set []tools.Tool, name string) (tools.Tool, bool) {
	for _, t := range set {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// promptTemplate binds the system message of a responder as a partial.
func promptTemplate(tmpl, systemKey string, inputs ...string) prompts.PromptTemplate {
	p := prompts.NewPromptTemplate(tmpl, inputs)
	p.PartialVariables = map[string]any{"system_message": models.SystemMessages[systemKey]}
	return p
}

// generate renders p and calls the model, wrapping every failure with
// ErrResponder.
func generate(ctx context.Context, llm llmservice.Generator, name string, p prompts.PromptTemplate, values map[string]any) (string, error) {
	prompt, err := p.Format(values)
	if err != nil {
		return "", fmt.Errorf("%w: %s: render prompt: %v", ErrResponder, name, err)
	}
	out, err := llm.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrResponder, name, err)
	}
	return out, nil
}
