package api

import (
	"context"
	"errors"
	"strings"

	"dealradar/internal/catalog"
	"dealradar/internal/docstore"
	"dealradar/internal/queue"
	"dealradar/internal/ranking"
	"dealradar/internal/scoring"
	"dealradar/internal/services"
	"dealradar/internal/store"
	"dealradar/internal/workflow"
)

// Backend is every operation exposed to clients.
type Backend interface {
	Submit(ctx context.Context, req SubmitRequest) (TaskView, error)
	SubmitCSV(ctx context.Context, content string) (BatchResponse, error)
	Tasks(ctx context.Context, limit int) ([]TaskView, error)
	Task(ctx context.Context, id string) (TaskView, error)
	CancelTask(ctx context.Context, id string) (TaskView, error)
	Companies(ctx context.Context, minScore, limit int) ([]ranking.Entry, error)
	Company(ctx context.Context, id string) (CompanyDetail, error)
	Evidence(ctx context.Context, id string, limit int) (EvidenceResponse, error)
	Relevance(ctx context.Context, id string) (RelevanceResponse, error)
	Report(ctx context.Context, id string) (ReportResponse, error)
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Stats(ctx context.Context) (StatsResponse, error)
	Status(ctx context.Context) (WorkflowStatus, error)
}

// Workflow is the orchestrator surface the service drives.
type Workflow interface {
	Submit(ctx context.Context, companyName string, opts ...workflow.SubmitOption) (queue.Task, error)
	SubmitBatch(ctx context.Context, submissions []workflow.Submission) ([]queue.Task, error)
	List(limit int) []queue.Task
	Get(id string) (queue.Task, error)
	Cancel(ctx context.Context, id string) (queue.Task, error)
	Status(ctx context.Context) workflow.StatusSummary
}

// Store is the read side of persistence the service needs.
type Store interface {
	docstore.Reader
	Result(ctx context.Context, companyID string) (*scoring.ScoreResult, error)
	Results(ctx context.Context, minScore, limit int) ([]*scoring.ScoreResult, error)
	Stats(ctx context.Context) (store.Stats, error)
	IndexedChunks(ctx context.Context, companyID string) (int, error)
}

// Insight answers the language-model backed requests.
type Insight interface {
	Relevance(ctx context.Context, companyID string) (RelevanceResponse, error)
	Report(ctx context.Context, companyID string) (ReportResponse, error)
	Chat(ctx context.Context, question, companyID string) (ChatResponse, error)
}

// Service implements Backend in-process.
type Service struct {
	workflow Workflow
	store    Store
	insight  Insight
	catalog  *catalog.Catalog
}

var _ Backend = (*Service)(nil)

// NewService wires the facade. A nil insight makes the model backed
// operations fail as upstream outages.
func NewService(wf Workflow, st Store, in Insight, cat *catalog.Catalog) *Service {
	return &Service{workflow: wf, store: st, insight: in, catalog: cat}
}

// Submit records a task for the company.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (TaskView, error) {
	var opts []workflow.SubmitOption
	if req.Website != "" {
		opts = append(opts, workflow.WithWebsite(req.Website))
	}
	if req.IRURL != "" {
		opts = append(opts, workflow.WithIRURL(req.IRURL))
	}
	if req.Country != "" {
		opts = append(opts, workflow.WithCountry(req.Country))
	}
	task, err := s.workflow.Submit(ctx, req.CompanyName, opts...)
	if err != nil {
		return TaskView{}, err
	}
	return FromTask(task), nil
}

// SubmitCSV records one task per company row of a semicolon separated list.
// The batch is rejected as a whole when any row is invalid.
func (s *Service) SubmitCSV(ctx context.Context, content string) (BatchResponse, error) {
	submissions, err := workflow.ParseSubmissions(strings.NewReader(content))
	if err != nil {
		return BatchResponse{}, err
	}
	tasks, err := s.workflow.SubmitBatch(ctx, submissions)
	if err != nil {
		return BatchResponse{}, err
	}
	views := FromTasks(tasks)
	return BatchResponse{Tasks: views, Count: len(views)}, nil
}

// Tasks lists tasks, most recent first.
func (s *Service) Tasks(_ context.Context, limit int) ([]TaskView, error) {
	return FromTasks(s.workflow.List(limit)), nil
}

// Task returns one task.
func (s *Service) Task(_ context.Context, id string) (TaskView, error) {
	task, err := s.workflow.Get(strings.TrimSpace(id))
	if err != nil {
		return TaskView{}, err
	}
	return FromTask(task), nil
}

// CancelTask requests cancellation of a task.
func (s *Service) CancelTask(ctx context.Context, id string) (TaskView, error) {
	task, err := s.workflow.Cancel(ctx, strings.TrimSpace(id))
	if err != nil {
		return TaskView{}, err
	}
	return FromTask(task), nil
}

// Companies returns the ranked company list.
func (s *Service) Companies(ctx context.Context, minScore, limit int) ([]ranking.Entry, error) {
	return ranking.List(ctx, s.store, s.store, ranking.Options{MinScore: minScore, Limit: limit})
}

// Company returns the stored result of a company.
func (s *Service) Company(ctx context.Context, id string) (CompanyDetail, error) {
	id, err := companyID(id)
	if err != nil {
		return CompanyDetail{}, err
	}
	result, err := s.store.Result(ctx, id)
	if err != nil {
		return CompanyDetail{}, err
	}
	company, err := s.store.Company(ctx, id)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			return CompanyDetail{}, err
		}
		company = docstore.Company{ID: id, Name: id}
	}
	return CompanyDetail{Company: company, Result: result}, nil
}

// Evidence groups the stored evidence of a company by category, at most
// limit items per category.
func (s *Service) Evidence(ctx context.Context, id string, limit int) (EvidenceResponse, error) {
	id, err := companyID(id)
	if err != nil {
		return EvidenceResponse{}, err
	}
	if limit <= 0 {
		limit = DefaultEvidenceLimit
	}
	result, err := s.store.Result(ctx, id)
	if err != nil {
		return EvidenceResponse{}, err
	}
	grouped := scoring.EvidenceByCategory(result, limit)
	resp := EvidenceResponse{CompanyID: id, Score: result.Score, Limit: limit}
	for _, category := range result.Categories {
		items := grouped[category.Category]
		if len(items) == 0 {
			continue
		}
		label := category.Label
		if label == "" {
			label = category.Category
		}
		resp.Groups = append(resp.Groups, EvidenceGroup{
			Category: category.Category,
			Label:    label,
			Hits:     category.Hits,
			Items:    items,
		})
	}
	return resp, nil
}

// Relevance returns the model-refined score of a company.
func (s *Service) Relevance(ctx context.Context, id string) (RelevanceResponse, error) {
	id, err := companyID(id)
	if err != nil {
		return RelevanceResponse{}, err
	}
	if err := s.insightReady("relevance"); err != nil {
		return RelevanceResponse{}, err
	}
	return s.insight.Relevance(ctx, id)
}

// Report returns a grounded analyst report for a company.
func (s *Service) Report(ctx context.Context, id string) (ReportResponse, error) {
	id, err := companyID(id)
	if err != nil {
		return ReportResponse{}, err
	}
	if err := s.insightReady("report"); err != nil {
		return ReportResponse{}, err
	}
	return s.insight.Report(ctx, id)
}

// Chat answers a question from the search index.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := s.insightReady("chat"); err != nil {
		return ChatResponse{}, err
	}
	return s.insight.Chat(ctx, req.Message, req.CompanyID)
}

// Stats summarizes the store and the signal catalog.
func (s *Service) Stats(ctx context.Context) (StatsResponse, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return StatsResponse{}, err
	}
	indexed, err := s.store.IndexedChunks(ctx, "")
	if err != nil {
		return StatsResponse{}, err
	}
	resp := StatsResponse{
		Companies:       stats.Companies,
		ScoredCompanies: stats.ScoredCompanies,
		Documents:       stats.Documents,
		Superseded:      stats.Superseded,
		Chunks:          stats.Chunks,
		IndexedChunks:   indexed,
		Tasks:           stats.Tasks,
		AverageScore:    stats.AverageScore,
	}
	if s.catalog != nil {
		resp.Signals = len(s.catalog.IDs())
		resp.CatalogVersion = s.catalog.Version
	}
	return resp, nil
}

// Status reports orchestrator state and stage health.
func (s *Service) Status(ctx context.Context) (WorkflowStatus, error) {
	return FromStatusSummary(s.workflow.Status(ctx)), nil
}

func (s *Service) insightReady(op string) error {
	if s.insight == nil {
		return services.Wrap(services.ErrUpstreamUnavailable, "api", op, "insight service not configured", nil)
	}
	return nil
}

func companyID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", services.Wrap(services.ErrInvalidInput, "api", "company", "company id is required", nil)
	}
	return id, nil
}
