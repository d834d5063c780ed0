package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gas-assistant/internal/llmservice"
	"gas-assistant/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/tools"
)

const DefaultMaxIterations = 3

// LoopState is the terminal state of the QA tool loop.
type LoopState int

const (
	// LoopAnswered means the model gave a final answer.
	LoopAnswered LoopState = iota + 1
	// LoopDirect means a return-direct tool produced the answer.
	LoopDirect
	// LoopExhausted means the step budget ran out without an answer.
	LoopExhausted
)

func (s LoopState) String() string {
	switch s {
	case LoopAnswered:
		return "answered"
	case LoopDirect:
		return "direct"
	case LoopExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// LoopResult is what the tool loop ended with. Answer is empty when the
// loop is exhausted.
type LoopResult struct {
	State  LoopState
	Answer string
	Steps  int
}

type stepKind int

const (
	stepInvalid stepKind = iota
	stepAnswer
	stepTool
)

// step is one parsed model turn.
type step struct {
	kind   stepKind
	answer string
	tool   string
	input  string
}

var (
	finalAnswerRe = regexp.MustCompile(`(?s)Final Answer:\s*(.*)`)
	actionRe      = regexp.MustCompile(`(?s)Action\s*:\s*(.*?)\s*\n\s*Action\s*Input\s*:\s*(.*)`)
)

func parseStep(out string) step {
	if m := finalAnswerRe.FindStringSubmatch(out); m != nil {
		return step{kind: stepAnswer, answer: strings.TrimSpace(m[1])}
	}
	if m := actionRe.FindStringSubmatch(out); m != nil {
		input := m[2]
		if i := strings.Index(input, "\nObservation"); i >= 0 {
			input = input[:i]
		}
		return step{
			kind:  stepTool,
			tool:  strings.Trim(strings.TrimSpace(m[1]), "`\"'[]"),
			input: strings.Trim(strings.TrimSpace(input), "\""),
		}
	}
	return step{kind: stepInvalid}
}

// QA is the general responder. It can call the other responders' tools
// through a bounded reasoning loop.
type QA struct {
	llm           llmservice.Generator
	tools         []tools.Tool
	maxIterations int
	direct        prompts.PromptTemplate
	loop          prompts.PromptTemplate
}

// NewQA builds the QA responder over the given tool sets. The
// answer_question tool is always appended.
func NewQA(llm llmservice.Generator, maxIterations int, toolsets ...[]tools.Tool) *QA {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	q := &QA{
		llm:           llm,
		maxIterations: maxIterations,
		direct:        promptTemplate(models.QADirectPromptTemplate, "qa", "query"),
		loop:          promptTemplate(models.QAAgentPromptTemplate, "qa", "tools", "tool_names", "query", "scratchpad"),
	}
	for _, set := range toolsets {
		q.tools = append(q.tools, set...)
	}
	q.tools = append(q.tools, Tool{
		name:         ToolAnswer,
		description:  "Répond directement à une question sans utiliser d'autres outils.",
		returnDirect: true,
		fn:           q.answerDirectly,
	})
	return q
}

func (q *QA) Name() string { return "qa" }

func (q *QA) Tools() []tools.Tool { return q.tools }

func (q *QA) answerDirectly(ctx context.Context, query string) (string, error) {
	return generate(ctx, q.llm, q.Name(), q.direct, map[string]any{"query": query})
}

func (q *QA) Process(ctx context.Context, req Request) (string, error) {
	if len(q.tools) <= 1 {
		return q.answerDirectly(ctx, req.Query)
	}

	res, err := q.Run(ctx, req.Query)
	if err != nil {
		return "", err
	}
	log.Debug().Stringer("state", res.State).Int("steps", res.Steps).Msg("QA loop finished")
	if res.State == LoopExhausted {
		log.Warn().Int("max_iterations", q.maxIterations).Msg("QA loop exhausted, answering directly")
		return q.answerDirectly(ctx, req.Query)
	}
	return res.Answer, nil
}

// Run drives the tool loop for at most maxIterations model calls. Tool
// failures, unknown tools and malformed model output are fed back to the
// model as observations; only a failing model call is returned as error.
func (q *QA) Run(ctx context.Context, query string) (LoopResult, error) {
	names := make([]string, 0, len(q.tools))
	var descriptions strings.Builder
	for _, t := range q.tools {
		names = append(names, t.Name())
		fmt.Fprintf(&descriptions, "%s: %s\n", t.Name(), t.Description())
	}
	toolNames := strings.Join(names, ", ")

	var scratchpad strings.Builder
	for i := 1; i <= q.maxIterations; i++ {
		out, err := generate(ctx, q.llm, q.Name(), q.loop, map[string]any{
			"tools":      descriptions.String(),
			"tool_names": toolNames,
			"query":      query,
			"scratchpad": scratchpad.String(),
		})
		if err != nil {
			return LoopResult{Steps: i}, err
		}

		s := parseStep(out)
		var observation string
		switch s.kind {
		case stepAnswer:
			return LoopResult{State: LoopAnswered, Answer: s.answer, Steps: i}, nil
		case stepTool:
			t, ok := FindTool(q.tools, s.tool)
			if !ok {
				observation = fmt.Sprintf("%s n'est pas un outil valide, choisir parmi [%s].", s.tool, toolNames)
				break
			}
			log.Debug().Int("step", i).Str("tool", s.tool).Msg("Calling tool")
			result, err := t.Call(ctx, s.input)
			if err != nil {
				log.Warn().Err(err).Str("tool", s.tool).Msg("Tool failed")
				observation = "Erreur: " + err.Error()
				break
			}
			if d, ok := t.(interface{ ReturnDirect() bool }); ok && d.ReturnDirect() {
				return LoopResult{State: LoopDirect, Answer: result, Steps: i}, nil
			}
			observation = result
		default:
			observation = "Format invalide: répondre avec Action et Action Input, ou avec Final Answer."
		}

		if j := strings.Index(out, "\nObservation"); j >= 0 {
			out = out[:j]
		}
		fmt.Fprintf(&scratchpad, "%s\nObservation: %s\n", strings.TrimSpace(out), observation)
	}
	return LoopResult{State: LoopExhausted, Steps: q.maxIterations}, nil
}
