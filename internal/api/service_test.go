package api

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"dealradar/internal/catalog"
	"dealradar/internal/docstore"
	"dealradar/internal/queue"
	"dealradar/internal/scoring"
	"dealradar/internal/services"
	"dealradar/internal/stage"
	"dealradar/internal/store"
	"dealradar/internal/testsupport"
	"dealradar/internal/workflow"
)

type stubWorkflow struct {
	submitted queue.Task
	batch     []workflow.Submission
	tasks     map[string]queue.Task
}

func (w *stubWorkflow) Submit(_ context.Context, name string, opts ...workflow.SubmitOption) (queue.Task, error) {
	if name == "" {
		return queue.Task{}, services.Wrap(services.ErrInvalidInput, "workflow", "submit", "company name is required", nil)
	}
	task := queue.Task{ID: "t1", CompanyName: name, Status: queue.StatusPending, CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	for _, opt := range opts {
		opt(&task)
	}
	w.submitted = task
	return task, nil
}

func (w *stubWorkflow) SubmitBatch(_ context.Context, submissions []workflow.Submission) ([]queue.Task, error) {
	w.batch = submissions
	out := make([]queue.Task, 0, len(submissions))
	for i, sub := range submissions {
		out = append(out, queue.Task{
			ID:          fmt.Sprintf("t%d", i+1),
			CompanyName: sub.CompanyName,
			Website:     sub.Website,
			Status:      queue.StatusPending,
		})
	}
	return out, nil
}

func (w *stubWorkflow) List(int) []queue.Task { return []queue.Task{w.submitted} }

func (w *stubWorkflow) Get(id string) (queue.Task, error) {
	if task, ok := w.tasks[id]; ok {
		return task, nil
	}
	return queue.Task{}, services.Wrap(services.ErrNotFound, "queue", "lookup", id, nil)
}

func (w *stubWorkflow) Cancel(_ context.Context, id string) (queue.Task, error) {
	task, err := w.Get(id)
	if err != nil {
		return queue.Task{}, err
	}
	task.Status = queue.StatusCancelled
	return task, nil
}

func (w *stubWorkflow) Status(context.Context) workflow.StatusSummary {
	return workflow.StatusSummary{
		Running:    true,
		Workers:    2,
		TaskCounts: map[queue.Status]int{queue.StatusRunning: 1},
		Stages:     []string{"discover", "collect"},
		StageHealth: map[string]stage.Health{
			"collect":  stage.Healthy("collect"),
			"discover": stage.Degraded("discover", "no recognizer"),
		},
	}
}

func seededService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	ctx := context.Background()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if err := st.UpsertCompany(ctx, docstore.Company{ID: "acme", Name: "Acme Holding"}); err != nil {
		t.Fatalf("UpsertCompany: %v", err)
	}
	result := &scoring.ScoreResult{
		CompanyID: "acme",
		RunID:     "run-1",
		Score:     4,
		Raw:       40,
		Categories: []scoring.CategoryScore{
			{Category: "carve_out", Label: "Carve-out", Hits: 3, Weight: 3},
			{Category: "biz_services", Label: "Services", Hits: 1, Weight: 1},
			{Category: "loss_stress", Label: "Losses", Hits: 0, Weight: 3},
		},
		Evidence: []scoring.Evidence{
			{Category: "carve_out", Keyword: "divest", Snippet: "a"},
			{Category: "carve_out", Keyword: "divest", Snippet: "b"},
			{Category: "carve_out", Keyword: "spin-off", Snippet: "c"},
			{Category: "biz_services", Keyword: "helpdesk", Snippet: "d"},
		},
	}
	if err := st.SaveResult(ctx, result); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return NewService(&stubWorkflow{}, st, nil, cat), st
}

func TestServiceSubmitPassesHints(t *testing.T) {
	wf := &stubWorkflow{}
	svc := NewService(wf, nil, nil, nil)

	view, err := svc.Submit(context.Background(), SubmitRequest{
		CompanyName: "Acme",
		Website:     "https://acme.example",
		Country:     "DE",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if view.Status != "pending" || view.Website != "https://acme.example" || view.Country != "DE" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.CreatedAt != "2025-01-02T03:04:05.000Z" {
		t.Fatalf("unexpected created_at %q", view.CreatedAt)
	}
	if view.IRURL != "" {
		t.Fatalf("ir url should stay empty, got %q", view.IRURL)
	}

	if _, err := svc.Submit(context.Background(), SubmitRequest{}); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestServiceSubmitCSV(t *testing.T) {
	wf := &stubWorkflow{}
	svc := NewService(wf, nil, nil, nil)

	resp, err := svc.SubmitCSV(context.Background(), "company_name;website\nAcme;acme.example\nGlobex;\n")
	if err != nil {
		t.Fatalf("SubmitCSV: %v", err)
	}
	if resp.Count != 2 || len(resp.Tasks) != 2 {
		t.Fatalf("unexpected batch: %+v", resp)
	}
	if resp.Tasks[0].Website != "https://acme.example" || resp.Tasks[1].CompanyName != "Globex" {
		t.Fatalf("unexpected tasks: %+v", resp.Tasks)
	}
	if len(wf.batch) != 2 {
		t.Fatalf("expected the parsed rows to reach the workflow, got %+v", wf.batch)
	}

	wf.batch = nil
	if _, err := svc.SubmitCSV(context.Background(), "Acme\nc2;Globex\n"); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if wf.batch != nil {
		t.Fatal("malformed input must not reach the workflow")
	}
}

func TestServiceTaskNotFound(t *testing.T) {
	svc := NewService(&stubWorkflow{}, nil, nil, nil)
	if _, err := svc.Task(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.CancelTask(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on cancel, got %v", err)
	}
}

func TestServiceEvidenceGroupsByCategory(t *testing.T) {
	svc, _ := seededService(t)

	resp, err := svc.Evidence(context.Background(), "acme", 2)
	if err != nil {
		t.Fatalf("Evidence: %v", err)
	}
	if resp.Limit != 2 || resp.Score != 4 {
		t.Fatalf("unexpected header: %+v", resp)
	}
	if len(resp.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(resp.Groups))
	}
	first := resp.Groups[0]
	if first.Category != "carve_out" || first.Hits != 3 || len(first.Items) != 2 {
		t.Fatalf("unexpected first group: %+v", first)
	}

	resp, err = svc.Evidence(context.Background(), "acme", 0)
	if err != nil {
		t.Fatalf("Evidence default: %v", err)
	}
	if resp.Limit != DefaultEvidenceLimit || len(resp.Groups[0].Items) != 3 {
		t.Fatalf("default limit not applied: %+v", resp)
	}
}

func TestServiceCompanyDetail(t *testing.T) {
	svc, _ := seededService(t)

	detail, err := svc.Company(context.Background(), " acme ")
	if err != nil {
		t.Fatalf("Company: %v", err)
	}
	if detail.Company.Name != "Acme Holding" || detail.Result.RunID != "run-1" {
		t.Fatalf("unexpected detail: %+v", detail)
	}
	if _, err := svc.Company(context.Background(), "ghost"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Company(context.Background(), " "); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestServiceCompaniesAndStats(t *testing.T) {
	svc, _ := seededService(t)
	ctx := context.Background()

	entries, err := svc.Companies(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Companies: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Acme Holding" || entries[0].Rank != 1 {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Companies != 1 || stats.ScoredCompanies != 1 || stats.Signals == 0 || stats.CatalogVersion == "" {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestServiceWithoutInsightIsUpstreamUnavailable(t *testing.T) {
	svc, _ := seededService(t)
	_, err := svc.Report(context.Background(), "acme")
	if services.KindOf(err) != services.KindUpstreamUnavailable {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
	_, err = svc.Chat(context.Background(), ChatRequest{Message: "who divests?"})
	if services.KindOf(err) != services.KindUpstreamUnavailable {
		t.Fatalf("expected upstream unavailable for chat, got %v", err)
	}
}

func TestFromStatusSummaryFollowsPipelineOrder(t *testing.T) {
	status := FromStatusSummary((&stubWorkflow{}).Status(context.Background()))
	if len(status.StageHealth) != 2 || status.StageHealth[0].Name != "discover" {
		t.Fatalf("unexpected stage order: %+v", status.StageHealth)
	}
	if status.TaskCounts["running"] != 1 || status.TaskCounts["pending"] != 0 {
		t.Fatalf("unexpected counts: %+v", status.TaskCounts)
	}
	if _, ok := status.TaskCounts["cancelled"]; !ok {
		t.Fatalf("every status should be listed: %+v", status.TaskCounts)
	}
}
