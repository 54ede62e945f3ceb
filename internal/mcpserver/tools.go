package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"dealradar/internal/api"
	"dealradar/internal/logging"
	"dealradar/internal/ranking"
	"dealradar/internal/services"
)

const defaultTaskLimit = 20

// SubmitInput is the input of submit_company.
type SubmitInput struct {
	CompanyName string `json:"company_name" jsonschema:"legal or common name of the company to analyze"`
	Website     string `json:"website,omitempty" jsonschema:"company website, skips website discovery"`
	IRURL       string `json:"ir_url,omitempty" jsonschema:"investor relations page, skips IR discovery"`
	Country     string `json:"country,omitempty" jsonschema:"country of the company"`
}

// SubmitCSVInput is the input of submit_companies_csv.
type SubmitCSVInput struct {
	CSV string `json:"csv" jsonschema:"semicolon separated rows with a company_name header, or one company name per line"`
}

// TaskInput identifies one task.
type TaskInput struct {
	TaskID string `json:"task_id" jsonschema:"id returned by submit_company"`
}

// TaskOutput wraps one task snapshot.
type TaskOutput struct {
	Task api.TaskView `json:"task"`
}

// ListTasksInput is the input of list_tasks.
type ListTasksInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of tasks to return (default 20)"`
}

// ListTasksOutput lists tasks, most recent first.
type ListTasksOutput struct {
	Tasks []api.TaskView `json:"tasks"`
	Count int            `json:"count"`
}

// ListCompaniesInput is the input of list_companies.
type ListCompaniesInput struct {
	MinScore int `json:"min_score,omitempty" jsonschema:"only companies with at least this score (0-9)"`
	Limit    int `json:"limit,omitempty" jsonschema:"maximum number of companies to return"`
}

// CompanyOutput is one ranked company.
type CompanyOutput struct {
	Rank        int    `json:"rank"`
	CompanyID   string `json:"company_id"`
	Name        string `json:"name"`
	Country     string `json:"country,omitempty"`
	Score       int    `json:"score"`
	Hits        int    `json:"hits"`
	Documents   int    `json:"documents"`
	LatestYear  string `json:"latest_year,omitempty"`
	TopCategory string `json:"top_category,omitempty"`
	ComputedAt  string `json:"computed_at,omitempty"`
}

// ListCompaniesOutput is the ranked company list.
type ListCompaniesOutput struct {
	Companies []CompanyOutput `json:"companies"`
	Count     int             `json:"count"`
}

// EvidenceInput is the input of company_evidence.
type EvidenceInput struct {
	CompanyID string `json:"company_id" jsonschema:"company id from list_companies"`
	Limit     int    `json:"limit,omitempty" jsonschema:"evidence items per category (default 5)"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "submit_company",
		Description: "Queue a company for annual report collection and deal signal scoring. Returns the pending task.",
	}, s.handleSubmit)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "submit_companies_csv",
		Description: "Queue every company of a semicolon separated list. Rejects the whole list when a row is invalid.",
	}, s.handleSubmitCSV)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_tasks",
		Description: "List analysis tasks, most recent first, with status and progress",
	}, s.handleListTasks)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cancel_task",
		Description: "Cancel a pending or running task. Running tasks stop at the next stage boundary.",
	}, s.handleCancelTask)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_companies",
		Description: "List scored companies ranked by deal signal score, highest first",
	}, s.handleListCompanies)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "company_evidence",
		Description: "Show the report excerpts behind a company's score, grouped by signal category",
	}, s.handleEvidence)
}

func (s *Server) handleSubmit(ctx context.Context, _ *mcp.CallToolRequest, input SubmitInput) (*mcp.CallToolResult, TaskOutput, error) {
	task, err := s.backend.Submit(ctx, api.SubmitRequest{
		CompanyName: input.CompanyName,
		Website:     input.Website,
		IRURL:       input.IRURL,
		Country:     input.Country,
	})
	if err != nil {
		return nil, TaskOutput{}, s.toolError("submit_company", err)
	}
	return nil, TaskOutput{Task: normalizeTask(task)}, nil
}

func (s *Server) handleSubmitCSV(ctx context.Context, _ *mcp.CallToolRequest, input SubmitCSVInput) (*mcp.CallToolResult, ListTasksOutput, error) {
	batch, err := s.backend.SubmitCSV(ctx, input.CSV)
	if err != nil {
		return nil, ListTasksOutput{}, s.toolError("submit_companies_csv", err)
	}
	out := ListTasksOutput{Tasks: make([]api.TaskView, 0, len(batch.Tasks)), Count: len(batch.Tasks)}
	for _, task := range batch.Tasks {
		out.Tasks = append(out.Tasks, normalizeTask(task))
	}
	return nil, out, nil
}

func (s *Server) handleListTasks(ctx context.Context, _ *mcp.CallToolRequest, input ListTasksInput) (*mcp.CallToolResult, ListTasksOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultTaskLimit
	}
	tasks, err := s.backend.Tasks(ctx, limit)
	if err != nil {
		return nil, ListTasksOutput{}, s.toolError("list_tasks", err)
	}
	out := ListTasksOutput{Tasks: make([]api.TaskView, 0, len(tasks)), Count: len(tasks)}
	for _, task := range tasks {
		out.Tasks = append(out.Tasks, normalizeTask(task))
	}
	return nil, out, nil
}

func (s *Server) handleCancelTask(ctx context.Context, _ *mcp.CallToolRequest, input TaskInput) (*mcp.CallToolResult, TaskOutput, error) {
	id := strings.TrimSpace(input.TaskID)
	if id == "" {
		return nil, TaskOutput{}, services.Wrap(services.ErrInvalidInput, "mcp", "cancel_task", "task_id is required", nil)
	}
	task, err := s.backend.CancelTask(ctx, id)
	if err != nil {
		return nil, TaskOutput{}, s.toolError("cancel_task", err)
	}
	return nil, TaskOutput{Task: normalizeTask(task)}, nil
}

func (s *Server) handleListCompanies(ctx context.Context, _ *mcp.CallToolRequest, input ListCompaniesInput) (*mcp.CallToolResult, ListCompaniesOutput, error) {
	entries, err := s.backend.Companies(ctx, input.MinScore, input.Limit)
	if err != nil {
		return nil, ListCompaniesOutput{}, s.toolError("list_companies", err)
	}
	out := ListCompaniesOutput{Companies: make([]CompanyOutput, 0, len(entries)), Count: len(entries)}
	for _, entry := range entries {
		out.Companies = append(out.Companies, companyOutput(entry))
	}
	return nil, out, nil
}

func (s *Server) handleEvidence(ctx context.Context, _ *mcp.CallToolRequest, input EvidenceInput) (*mcp.CallToolResult, api.EvidenceResponse, error) {
	resp, err := s.backend.Evidence(ctx, strings.TrimSpace(input.CompanyID), input.Limit)
	if err != nil {
		return nil, api.EvidenceResponse{}, s.toolError("company_evidence", err)
	}
	if resp.Groups == nil {
		resp.Groups = []api.EvidenceGroup{}
	}
	return nil, resp, nil
}

// toolError logs the failure and appends the hint, which MCP clients would
// otherwise never see.
func (s *Server) toolError(tool string, err error) error {
	details := services.Details(err)
	attrs := []logging.Attr{
		logging.String("tool", tool),
		logging.String("error_kind", string(details.Kind)),
		logging.Error(err),
	}
	s.logger.Warn("tool call failed", logging.Args(attrs...)...)
	if details.Hint != "" {
		return fmt.Errorf("%w (%s)", err, details.Hint)
	}
	return err
}

func companyOutput(entry ranking.Entry) CompanyOutput {
	out := CompanyOutput{
		Rank:        entry.Rank,
		CompanyID:   entry.CompanyID,
		Name:        entry.Name,
		Country:     entry.Country,
		Score:       entry.Score,
		Hits:        entry.Hits,
		Documents:   entry.Documents,
		LatestYear:  entry.LatestYear,
		TopCategory: entry.TopCategory,
	}
	if !entry.ComputedAt.IsZero() {
		out.ComputedAt = entry.ComputedAt.UTC().Format(time.RFC3339)
	}
	return out
}

// normalizeTask replaces nil slices so structured output always carries arrays.
func normalizeTask(task api.TaskView) api.TaskView {
	if task.StepsCompleted == nil {
		task.StepsCompleted = []string{}
	}
	if task.Companies == nil {
		task.Companies = []string{}
	}
	if task.Documents == nil {
		task.Documents = []string{}
	}
	if task.Log == nil {
		task.Log = []string{}
	}
	return task
}
