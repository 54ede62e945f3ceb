package api

import (
	"dealradar/internal/docstore"
	"dealradar/internal/insight"
	"dealradar/internal/ranking"
	"dealradar/internal/scoring"
	"dealradar/internal/stage"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// DefaultEvidenceLimit bounds evidence per category when the caller sets none.
const DefaultEvidenceLimit = 5

// SubmitRequest asks for one company to be analyzed.
type SubmitRequest struct {
	CompanyName string `json:"company_name"`
	Website     string `json:"website,omitempty"`
	IRURL       string `json:"ir_url,omitempty"`
	Country     string `json:"country,omitempty"`
}

// TaskView describes a task in a transport-friendly format.
type TaskView struct {
	ID             string   `json:"id"`
	CompanyName    string   `json:"company_name"`
	Website        string   `json:"website,omitempty"`
	IRURL          string   `json:"ir_url,omitempty"`
	Country        string   `json:"country,omitempty"`
	Status         string   `json:"status"`
	Progress       float64  `json:"progress"`
	CurrentStep    string   `json:"current_step,omitempty"`
	StepsCompleted []string `json:"steps_completed"`
	Companies      []string `json:"companies"`
	Documents      []string `json:"documents"`
	Error          string   `json:"error,omitempty"`
	ErrorKind      string   `json:"error_kind,omitempty"`
	Log            []string `json:"log"`
	CreatedAt      string   `json:"created_at,omitempty"`
	StartedAt      string   `json:"started_at,omitempty"`
	FinishedAt     string   `json:"finished_at,omitempty"`
	UpdatedAt      string   `json:"updated_at,omitempty"`
}

// TaskListResponse wraps a list of tasks.
type TaskListResponse struct {
	Tasks []TaskView `json:"tasks"`
}

// BatchResponse lists the tasks created by a bulk submission.
type BatchResponse struct {
	Tasks []TaskView `json:"tasks"`
	Count int        `json:"count"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Task TaskView `json:"task"`
}

// CompanyListResponse is the ranked company list.
type CompanyListResponse struct {
	Companies []ranking.Entry `json:"companies"`
}

// CompanyDetail pairs a company record with its stored score result.
type CompanyDetail struct {
	Company docstore.Company     `json:"company"`
	Result  *scoring.ScoreResult `json:"result"`
}

// EvidenceGroup is the evidence of one signal category.
type EvidenceGroup struct {
	Category string             `json:"category"`
	Label    string             `json:"label"`
	Hits     int                `json:"hits"`
	Items    []scoring.Evidence `json:"items"`
}

// EvidenceResponse lists evidence grouped by category in catalog order.
type EvidenceResponse struct {
	CompanyID string          `json:"company_id"`
	Score     int             `json:"score"`
	Limit     int             `json:"limit"`
	Groups    []EvidenceGroup `json:"groups"`
}

// ChatRequest is a free-text question, optionally scoped to one company.
type ChatRequest struct {
	Message   string `json:"message"`
	CompanyID string `json:"company_id,omitempty"`
}

// RelevanceResponse is the model-refined score of a company.
type RelevanceResponse = insight.Relevance

// ReportResponse is a grounded analyst report.
type ReportResponse = insight.Report

// ChatResponse is an answer with its cited passages.
type ChatResponse = insight.Answer

// Source is one cited excerpt of a report or chat answer.
type Source = insight.Source

// StatsResponse summarizes the store.
type StatsResponse struct {
	Companies       int     `json:"companies"`
	ScoredCompanies int     `json:"scored_companies"`
	Documents       int     `json:"documents"`
	Superseded      int     `json:"superseded_documents"`
	Chunks          int     `json:"chunks"`
	IndexedChunks   int     `json:"indexed_chunks"`
	Tasks           int     `json:"tasks"`
	Signals         int     `json:"signals"`
	CatalogVersion  string  `json:"catalog_version"`
	AverageScore    float64 `json:"average_score"`
}

// WorkflowStatus summarizes orchestrator state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Workers     int            `json:"workers"`
	Busy        int            `json:"busy"`
	LastError   string         `json:"last_error,omitempty"`
	LastTask    *TaskView      `json:"last_task,omitempty"`
	TaskCounts  map[string]int `json:"task_counts"`
	Stages      []string       `json:"stages"`
	StageHealth []stage.Health `json:"stage_health"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Hint  string `json:"hint,omitempty"`
}
