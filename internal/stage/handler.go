package stage

import (
	"context"
	"log/slog"

	"dealradar/internal/docstore"
	"dealradar/internal/logging"
	"dealradar/internal/scoring"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	// Name is the stable identifier recorded in a task's completed steps.
	Name() string
	// Label is the human readable step shown as a task's current step.
	Label() string
	Execute(ctx context.Context, run *Run) (Artifacts, error)
	HealthCheck(ctx context.Context) Health
}

// Dependent is implemented by stages that consume the artifacts of earlier
// stages. The manager rejects stage lists that break these dependencies.
type Dependent interface {
	DependsOn() []string
}

// CancelToken reports whether the owning task has been asked to stop.
// Stages that process many units (files, pages) may consult it between
// units and return early with ErrCancelled.
type CancelToken interface {
	Requested() bool
}

// Request carries what the caller supplied when submitting the task.
type Request struct {
	TaskID      string
	CompanyName string
	Website     string
	IRURL       string
	Country     string
}

// Run is the partial task context handed from stage to stage. Each stage
// reads what earlier stages produced and fills in its own part.
type Run struct {
	Request   Request
	Company   docstore.Company
	Links     []docstore.Link
	Documents []docstore.Document
	Score     *scoring.ScoreResult
	Cancel    CancelToken
	Logger    *slog.Logger
}

// CancelRequested is a nil-safe check of the run's cancel token.
func (r *Run) CancelRequested() bool {
	return r != nil && r.Cancel != nil && r.Cancel.Requested()
}

// Log returns the run's logger, or a discarding logger when none is set.
func (r *Run) Log() *slog.Logger {
	if r == nil || r.Logger == nil {
		return logging.NewNop()
	}
	return r.Logger
}

// Artifacts summarizes what a stage produced; the manager folds it into the
// task record.
type Artifacts struct {
	Companies []string
	Documents []string
	Message   string
}
