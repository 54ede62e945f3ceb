package ranking_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealradar/internal/catalog"
	"dealradar/internal/docstore"
	"dealradar/internal/ranking"
	"dealradar/internal/scoring"
	"dealradar/internal/services"
	"dealradar/internal/stage"
	"dealradar/internal/testsupport"
)

const testCatalog = `
version: test-1
policy: {cap_per_category: 10, normalization: 10, display_max: 9}
signals:
  - {id: carve_out, label: Carve-out, weight: 3, keywords: [spin-off]}
  - {id: biz_services, label: Services, weight: 1, keywords: [helpdesk]}
`

func engineFor(t *testing.T, docs docstore.Reader) *scoring.Engine {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	return scoring.NewEngine(cat, docs)
}

func TestScanThenScorePersistsResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedDocument(t, st, "acme", "2023", strings.Repeat("planned spin-off of the unit. ", 10)+"helpdesk")

	locks := docstore.NewLocks()
	scan := ranking.NewScanStage(engineFor(t, st), locks)
	score := ranking.NewScoreStage(st, locks)
	run := &stage.Run{Company: docstore.Company{ID: "acme"}}

	_, err := scan.Execute(context.Background(), run)
	require.NoError(t, err)
	require.NotNil(t, run.Score)
	assert.Equal(t, 31, run.Score.Raw)
	assert.Equal(t, 3, run.Score.Score)

	artifacts, err := score.Execute(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, artifacts.Companies)
	assert.Contains(t, artifacts.Message, "score 3")

	stored, err := st.Result(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, run.Score.RunID, stored.RunID)
	assert.Equal(t, 11, stored.TotalHits())
}

func TestScanWithoutDocumentsKeepsNotFound(t *testing.T) {
	scan := ranking.NewScanStage(engineFor(t, docstore.NewMemory()), docstore.NewLocks())
	run := &stage.Run{Company: docstore.Company{ID: "ghost"}}

	_, err := scan.Execute(context.Background(), run)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrNotFound))
	assert.Nil(t, run.Score)
}

func TestScanWaitsForCompanyLock(t *testing.T) {
	docs := docstore.NewMemory()
	locks := docstore.NewLocks()
	release, err := locks.Acquire(context.Background(), "acme")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scan := ranking.NewScanStage(engineFor(t, docs), locks)
	_, err = scan.Execute(ctx, &stage.Run{Company: docstore.Company{ID: "acme"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScoreWithoutScanFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	score := ranking.NewScoreStage(testsupport.MustOpenStore(t, cfg), docstore.NewLocks())

	_, err := score.Execute(context.Background(), &stage.Run{Company: docstore.Company{ID: "acme"}})
	require.Error(t, err)
	assert.Equal(t, services.KindStageFailure, services.KindOf(err))
}

type fakeResults []*scoring.ScoreResult

func (f fakeResults) Results(_ context.Context, minScore, _ int) ([]*scoring.ScoreResult, error) {
	var out []*scoring.ScoreResult
	for _, r := range f {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestListOrdersByScoreThenName(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	require.NoError(t, docs.UpsertCompany(ctx, docstore.Company{ID: "beta", Name: "Beta AG"}))
	require.NoError(t, docs.UpsertCompany(ctx, docstore.Company{ID: "alpha", Name: "Älpha Oy", Country: "FI"}))
	require.NoError(t, docs.UpsertCompany(ctx, docstore.Company{ID: "gamma", Name: "Gamma SA"}))

	results := fakeResults{
		{CompanyID: "beta", Score: 5, Raw: 50},
		{CompanyID: "gamma", Score: 7, Raw: 70, Categories: []scoring.CategoryScore{
			{Category: "carve_out", Contribution: 30},
			{Category: "biz_services", Contribution: 10},
		}},
		{CompanyID: "alpha", Score: 5, Raw: 48},
		{CompanyID: "orphan", Score: 1, Raw: 9},
	}

	entries, err := ranking.List(ctx, docs, results, ranking.Options{})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.CompanyID)
	}
	assert.Equal(t, []string{"gamma", "alpha", "beta", "orphan"}, ids)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "carve_out", entries[0].TopCategory)
	assert.Equal(t, "FI", entries[1].Country)
	assert.Equal(t, "orphan", entries[3].Name)

	limited, err := ranking.List(ctx, docs, results, ranking.Options{MinScore: 5, Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "alpha", limited[1].CompanyID)
	assert.Equal(t, 2, limited[1].Rank)
}
