package agents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"gas-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/tools"
)

// scripted replays responses in order and records every prompt.
type scripted struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (s *scripted) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "réponse", nil
	}
	out := s.responses[0]
	s.responses = s.responses[1:]
	return out, nil
}

func (s *scripted) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type fixedSearch struct {
	results []models.SearchResult
	queries []string
}

func (f *fixedSearch) Search(_ context.Context, query string, _ int) []models.SearchResult {
	f.queries = append(f.queries, query)
	return f.results
}

type stubTool struct {
	name string
	out  string
	err  error
	in   []string
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) Call(_ context.Context, input string) (string, error) {
	s.in = append(s.in, input)
	return s.out, s.err
}

func TestExpert_WithContext(t *testing.T) {
	llm := &scripted{responses: []string{"Le réseau compte 200 000 km."}}
	search := &fixedSearch{results: []models.SearchResult{{
		Content:  "GRDF exploite 200 000 km de canalisations.",
		Metadata: map[string]string{models.MetaTitle: "Rapport", models.MetaDocumentType: "pdf"},
	}}}
	e := NewExpert(llm, search, 3)

	out, err := e.Process(context.Background(), Request{Query: "Quelle est la longueur du réseau?"})
	require.NoError(t, err)
	assert.Equal(t, "Le réseau compte 200 000 km.", out)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Documents pertinents trouvés")
	assert.Contains(t, llm.prompts[0], "GRDF exploite 200 000 km de canalisations.")
	assert.Contains(t, llm.prompts[0], models.SystemMessages["gaz_expert"])
}

func TestExpert_WithoutContext(t *testing.T) {
	llm := &scripted{}
	e := NewExpert(llm, &fixedSearch{}, 3)

	_, err := e.Process(context.Background(), Request{Query: "Qu'est-ce que le biométhane?"})
	require.NoError(t, err)
	require.Len(t, llm.prompts, 1)
	assert.NotContains(t, llm.prompts[0], "Documents pertinents")
	assert.Contains(t, llm.prompts[0], "Qu'est-ce que le biométhane?")
}

func TestExpert_Tools(t *testing.T) {
	llm := &scripted{}
	search := &fixedSearch{}
	e := NewExpert(llm, search, 3)

	tool, ok := FindTool(e.Tools(), string(ToolSafety))
	require.True(t, ok)
	_, err := tool.Call(context.Background(), "détendeur")
	require.NoError(t, err)
	assert.Equal(t, []string{"sécurité gaz détendeur"}, search.queries)
	assert.Contains(t, llm.prompts[0], "Concernant la sécurité gazière: détendeur")
}

func TestExpert_ModelError(t *testing.T) {
	e := NewExpert(&scripted{err: errors.New("quota")}, nil, 3)
	_, err := e.Process(context.Background(), Request{Query: "q"})
	assert.ErrorIs(t, err, ErrResponder)
}

func TestWatch_NoWebSearch(t *testing.T) {
	llm := &scripted{}
	w := NewWatch(llm, nil)

	_, err := w.Process(context.Background(), Request{Query: "tendances hydrogène"})
	require.NoError(t, err)
	assert.Contains(t, llm.prompts[0], models.NoWebSearch)
	assert.Contains(t, llm.prompts[0], "Demande de veille: tendances hydrogène")
}

func TestWatch_SearchQueries(t *testing.T) {
	llm := &scripted{}
	web := &stubTool{name: "serpapi", out: "résultats web"}
	w := NewWatch(llm, web)

	tool, ok := FindTool(w.Tools(), string(ToolCompetitiveWatch))
	require.True(t, ok)
	_, err := tool.Call(context.Background(), "2024")
	require.NoError(t, err)
	assert.Equal(t, []string{"GRDF concurrents GRDF 2024"}, web.in)
	assert.Contains(t, llm.prompts[0], "résultats web")
}

func TestWatch_SearchError(t *testing.T) {
	llm := &scripted{}
	w := NewWatch(llm, &stubTool{name: "serpapi", err: errors.New("quota dépassé")})

	_, err := w.Process(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Contains(t, llm.prompts[0], "Erreur lors de la recherche: quota dépassé")
}

func TestNewWebSearch_NoKey(t *testing.T) {
	tool, err := NewWebSearch("")
	require.NoError(t, err)
	assert.Nil(t, tool)
}

func TestVisualization_PackedInput(t *testing.T) {
	llm := &scripted{}
	v := NewVisualization(llm)
	chart, ok := FindTool(v.Tools(), string(ToolChart))
	require.True(t, ok)

	_, err := chart.Call(context.Background(), "chart request|||Jan: 10, Feb: 20")
	require.NoError(t, err)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Demande de visualisation: chart request\n")
	assert.Contains(t, llm.prompts[0], "Données à visualiser ou informations à présenter: Jan: 10, Feb: 20\n")

	out, err := chart.Call(context.Background(), "no delimiter here")
	require.NoError(t, err)
	assert.Equal(t, models.FormatErrorMessage, out)

	out, err = chart.Call(context.Background(), "a|||b|||c")
	require.NoError(t, err)
	assert.Equal(t, models.FormatErrorMessage, out)
	assert.Equal(t, 1, llm.calls())
}

func TestVisualization_Prefixes(t *testing.T) {
	llm := &scripted{}
	v := NewVisualization(llm)
	excel, _ := FindTool(v.Tools(), string(ToolExcel))
	report, _ := FindTool(v.Tools(), string(ToolReport))

	_, err := excel.Call(context.Background(), "ventes|||T1: 5")
	require.NoError(t, err)
	_, err = report.Call(context.Background(), "bilan|||2024")
	require.NoError(t, err)
	assert.Contains(t, llm.prompts[0], "Créer un tableau Excel pour ventes")
	assert.Contains(t, llm.prompts[1], "Créer un rapport pour bilan")
}

func TestVisualization_DefaultData(t *testing.T) {
	llm := &scripted{}
	_, err := NewVisualization(llm).Process(context.Background(), Request{Query: "graphique"})
	require.NoError(t, err)
	assert.Contains(t, llm.prompts[0], models.NoDataProvided)
}

func TestParseStep(t *testing.T) {
	s := parseStep("Thought: je cherche\nAction: distribution_gaz_info\nAction Input: réseau urbain\nObservation: inventé")
	assert.Equal(t, stepTool, s.kind)
	assert.Equal(t, "distribution_gaz_info", s.tool)
	assert.Equal(t, "réseau urbain", s.input)

	s = parseStep("Thought: ok\nFinal Answer: 42 compteurs")
	assert.Equal(t, stepAnswer, s.kind)
	assert.Equal(t, "42 compteurs", s.answer)

	assert.Equal(t, stepInvalid, parseStep("je ne sais pas").kind)
}

func TestQA_DirectWithoutTools(t *testing.T) {
	llm := &scripted{responses: []string{"Bonjour"}}
	q := NewQA(llm, 3)
	require.Len(t, q.Tools(), 1)

	out, err := q.Process(context.Background(), Request{Query: "Salut"})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", out)
	assert.Contains(t, llm.prompts[0], "Question: Salut")
}

func TestQA_LoopAnswered(t *testing.T) {
	tool := &stubTool{name: string(ToolDistribution), out: "11 millions de clients"}
	llm := &scripted{responses: []string{
		"Thought: besoin de données\nAction: distribution_gaz_info\nAction Input: clients",
		"Thought: je sais\nFinal Answer: GRDF dessert 11 millions de clients.",
	}}
	q := NewQA(llm, 3, []tools.Tool{tool})

	res, err := q.Run(context.Background(), "Combien de clients?")
	require.NoError(t, err)
	assert.Equal(t, LoopAnswered, res.State)
	assert.Equal(t, 2, res.Steps)
	assert.Equal(t, "GRDF dessert 11 millions de clients.", res.Answer)
	assert.Equal(t, []string{"clients"}, tool.in)
	assert.Contains(t, llm.prompts[1], "Observation: 11 millions de clients")
}

func TestQA_LoopDirect(t *testing.T) {
	llm := &scripted{responses: []string{
		"Action: answer_question\nAction Input: Qui est GRDF?",
		"GRDF est le principal distributeur.",
	}}
	q := NewQA(llm, 3, []tools.Tool{&stubTool{name: "x"}})

	res, err := q.Run(context.Background(), "Qui est GRDF?")
	require.NoError(t, err)
	assert.Equal(t, LoopDirect, res.State)
	assert.Equal(t, "GRDF est le principal distributeur.", res.Answer)
}

func TestQA_LoopExhausted(t *testing.T) {
	llm := &scripted{responses: []string{
		"Action: outil_inconnu\nAction Input: x",
		"bavardage",
		"Action: x\nAction Input: y",
		"Réponse directe",
	}}
	tool := &stubTool{name: "x", err: errors.New("panne")}
	q := NewQA(llm, 3, []tools.Tool{tool})

	out, err := q.Process(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "Réponse directe", out)
	require.Equal(t, 4, llm.calls())
	assert.Contains(t, llm.prompts[1], "outil_inconnu n'est pas un outil valide")
	assert.Contains(t, llm.prompts[2], "Format invalide")
	assert.True(t, strings.HasPrefix(llm.prompts[3], models.SystemMessages["qa"]))
	assert.Contains(t, llm.prompts[3], "Réponse:")
}

func TestQA_ModelErrorPropagates(t *testing.T) {
	q := NewQA(&scripted{err: errors.New("down")}, 3, []tools.Tool{&stubTool{name: "x"}})
	_, err := q.Process(context.Background(), Request{Query: "q"})
	assert.ErrorIs(t, err, ErrResponder)
}
