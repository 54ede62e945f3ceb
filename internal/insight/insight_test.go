package insight_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealradar/internal/catalog"
	"dealradar/internal/docstore"
	"dealradar/internal/insight"
	"dealradar/internal/llm"
	"dealradar/internal/scoring"
	"dealradar/internal/services"
	"dealradar/internal/store"
	"dealradar/internal/testsupport"
)

type fakeModel struct {
	json     string
	text     string
	err      error
	prompts  []string
	messages [][]llm.Message
}

func (f *fakeModel) Complete(_ context.Context, messages ...llm.Message) (string, error) {
	f.messages = append(f.messages, messages)
	return f.text, f.err
}

func (f *fakeModel) CompleteJSON(_ context.Context, _, user string) (string, error) {
	f.prompts = append(f.prompts, user)
	return f.json, f.err
}

type fakeResults map[string]*scoring.ScoreResult

func (f fakeResults) Result(_ context.Context, id string) (*scoring.ScoreResult, error) {
	if r, ok := f[id]; ok {
		return r, nil
	}
	return nil, services.Wrap(services.ErrNotFound, "store", "lookup", "score result "+id, docstore.ErrNotFound)
}

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return cat
}

func sampleResult() *scoring.ScoreResult {
	ev := func(category, keyword, snippet string) scoring.Evidence {
		return scoring.Evidence{Category: category, Keyword: keyword, Snippet: snippet, DocumentID: "d1", Filename: "acme_2023_d1.pdf", Year: "2023"}
	}
	return &scoring.ScoreResult{
		CompanyID: "acme",
		Score:     6,
		Evidence: []scoring.Evidence{
			ev("carve_out", "divestment", "the divestment of the packaging division closed in march"),
			ev("carve_out", "divestment", "the divestment of the packaging division closed in march"),
			ev("carve_out", "strategic review", "board launched a strategic review of the logistics arm"),
			ev("carve_out", "non-core", "non-core assets held for sale under ifrs 5"),
			ev("carve_out", "carve-out", "carve-out of the lab services unit was signed"),
			ev("carve_out", "divest", "plans to divest the chemicals plant in 2024"),
			ev("loss_stress", "operating loss", "operating loss widened in the retail segment"),
		},
	}
}

func TestRelevanceAdjustsForFalsePositives(t *testing.T) {
	model := &fakeModel{json: `{"signals": [
		{"id": "carve_out_0", "relevant": true, "reason": "actual sale"},
		{"id": "carve_out_2", "relevant": false, "reason": "accounting standard"},
		{"id": "loss_stress_0", "relevant": false, "reason": "segment note"}
	]}`}
	svc := insight.NewService(model, defaultCatalog(t), docstore.NewMemory(), fakeResults{"acme": sampleResult()}, nil)

	rel, err := svc.Relevance(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 6, rel.OriginalScore)
	assert.Equal(t, 4, rel.AdjustedScore)
	assert.Equal(t, 5, rel.Total)
	assert.Equal(t, 2, rel.FalsePositives)
	assert.Equal(t, 3, rel.Real)

	require.Len(t, model.prompts, 1)
	assert.Equal(t, 1, strings.Count(model.prompts[0], "packaging division"), "duplicate quotes are sent once")
	assert.Contains(t, model.prompts[0], "Type: Losses / Financial Distress")

	byID := map[string]insight.Verdict{}
	for _, v := range rel.Signals {
		byID[v.ID] = v
	}
	assert.Equal(t, "accounting standard", byID["carve_out_2"].Reason)
	assert.True(t, byID["carve_out_3"].Relevant, "unanswered items count as relevant")
}

func TestRelevanceAcceptsBareArray(t *testing.T) {
	model := &fakeModel{json: "```json\n[{\"id\": \"loss_stress_0\", \"relevant\": false}]\n```"}
	svc := insight.NewService(model, defaultCatalog(t), nil, fakeResults{"acme": sampleResult()}, nil)

	rel, err := svc.Relevance(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, rel.FalsePositives)
	assert.Equal(t, 5, rel.AdjustedScore)
}

func TestRelevanceModelOutageIsUpstreamUnavailable(t *testing.T) {
	model := &fakeModel{err: errors.New("connection refused")}
	svc := insight.NewService(model, defaultCatalog(t), nil, fakeResults{"acme": sampleResult()}, nil)

	_, err := svc.Relevance(context.Background(), "acme")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrUpstreamUnavailable))
}

func TestRelevanceUnknownCompanyIsNotFound(t *testing.T) {
	svc := insight.NewService(&fakeModel{}, defaultCatalog(t), nil, fakeResults{}, nil)
	_, err := svc.Relevance(context.Background(), "ghost")
	assert.True(t, errors.Is(err, services.ErrNotFound))
}

func TestRelevanceWithoutEvidenceSkipsModel(t *testing.T) {
	svc := insight.NewService(nil, defaultCatalog(t), nil, fakeResults{"calm": {CompanyID: "calm", Score: 0}}, nil)
	rel, err := svc.Relevance(context.Background(), "calm")
	require.NoError(t, err)
	assert.Zero(t, rel.AdjustedScore)
	assert.Empty(t, rel.Signals)
}

func TestAdjustScore(t *testing.T) {
	cases := []struct{ score, fp, want int }{
		{9, 0, 9},
		{9, 2, 7},
		{9, 10, 5},
		{2, 4, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, insight.AdjustScore(tc.score, tc.fp))
	}
}

func TestReportCitesThreeQuotesPerCategory(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	require.NoError(t, docs.UpsertCompany(ctx, docstore.Company{ID: "acme", Name: "Acme Holding"}))
	model := &fakeModel{text: "  1) Executive summary ...  "}
	svc := insight.NewService(model, defaultCatalog(t), docs, fakeResults{"acme": sampleResult()}, nil)

	report, err := svc.Report(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "1) Executive summary ...", report.Report)
	assert.Equal(t, "Acme Holding", report.Company)
	assert.Len(t, report.Sources, 4)
	assert.Equal(t, "acme_2023_d1.pdf", report.Sources[0].Filename)

	require.Len(t, model.messages, 1)
	assert.Contains(t, model.messages[0][1].Content, "distress signals at Acme Holding")
}

func TestReportWithoutModelIsUpstreamUnavailable(t *testing.T) {
	svc := insight.NewService(nil, defaultCatalog(t), nil, fakeResults{"acme": sampleResult()}, nil)
	_, err := svc.Report(context.Background(), "acme")
	require.Error(t, err)
	assert.Equal(t, services.KindUpstreamUnavailable, services.KindOf(err))
	assert.NotEmpty(t, services.Details(err).Hint)
}

func TestChatAnswersFromIndex(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	doc := testsupport.SeedDocument(t, st, "acme", "2023", "The board approved the divestment of the packaging division.")
	require.NoError(t, st.ReplaceIndex(ctx, "acme", []store.IndexEntry{{
		CompanyID: "acme", DocumentID: doc.ID, FiscalYear: "2023", Filename: doc.Filename,
		Content: "The board approved the divestment of the packaging division.",
	}}))

	model := &fakeModel{text: "Acme is divesting packaging [acme, 2023, file]."}
	svc := insight.NewService(model, defaultCatalog(t), st, st, st)

	answer, err := svc.Chat(ctx, "  Who is selling a packaging business?  ", "")
	require.NoError(t, err)
	assert.Equal(t, "Who is selling a packaging business?", answer.Question)
	assert.Contains(t, answer.Answer, "divesting")
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "acme", answer.Sources[0].CompanyID)
	assert.Equal(t, "2023", answer.Sources[0].Year)

	none, err := svc.Chat(ctx, "zeppelin", "")
	require.NoError(t, err)
	assert.Equal(t, insight.NoPassagesAnswer, none.Answer)
	assert.Len(t, model.messages, 1)
}

func TestChatRejectsEmptyQuestion(t *testing.T) {
	svc := insight.NewService(&fakeModel{}, nil, nil, fakeResults{}, nil)
	_, err := svc.Chat(context.Background(), "   ", "")
	assert.True(t, errors.Is(err, services.ErrInvalidInput))
}
