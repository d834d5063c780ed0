package agents

import (
	"context"
	"strings"

	"gas-assistant/internal/llmservice"
	"gas-assistant/internal/models"

	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/tools"
)

// Visualization writes instructions for charts, spreadsheets and reports.
type Visualization struct {
	llm    llmservice.Generator
	prompt prompts.PromptTemplate
}

func NewVisualization(llm llmservice.Generator) *Visualization {
	return &Visualization{
		llm:    llm,
		prompt: promptTemplate(models.VisualizationPromptTemplate, "visualization", "query", "data"),
	}
}

func (v *Visualization) Name() string { return "visualisation" }

func (v *Visualization) Process(ctx context.Context, req Request) (string, error) {
	data := req.Data
	if strings.TrimSpace(data) == "" {
		data = models.NoDataProvided
	}
	return v.instruct(ctx, req.Query, data)
}

func (v *Visualization) instruct(ctx context.Context, query, data string) (string, error) {
	return generate(ctx, v.llm, v.Name(), v.prompt, map[string]any{"query": query, "data": data})
}

// packed splits "request|||data" and prefixes the request. Any other shape
// returns the format error without calling the model.
func (v *Visualization) packed(prefix string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, input string) (string, error) {
		parts := strings.Split(input, models.DataDelimiter)
		if len(parts) != 2 {
			return models.FormatErrorMessage, nil
		}
		return v.instruct(ctx, prefix+parts[0], parts[1])
	}
}

func (v *Visualization) Tools() []tools.Tool {
	return []tools.Tool{
		NewTool(ToolChart, "Crée des instructions détaillées pour des graphiques (format: 'demande||| données')",
			v.packed("")),
		NewTool(ToolExcel, "Crée des instructions détaillées pour des tableaux Excel (format: 'demande||| données')",
			v.packed("Créer un tableau Excel pour ")),
		NewTool(ToolReport, "Crée des instructions détaillées pour des rapports (format: 'demande||| données')",
			v.packed("Créer un rapport pour ")),
	}
}
