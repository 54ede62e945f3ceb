package ranking

import (
	"context"
	"fmt"

	"dealradar/internal/docstore"
	"dealradar/internal/logging"
	"dealradar/internal/scoring"
	"dealradar/internal/services"
	"dealradar/internal/stage"
)

const (
	// ScanStageName is the identifier of the scan stage.
	ScanStageName = "scan"
	// ScoreStageName is the identifier of the score stage.
	ScoreStageName = "score"
)

// ResultSaver persists score results.
type ResultSaver interface {
	SaveResult(ctx context.Context, result *scoring.ScoreResult) error
}

// ScanStage scores the company's active documents.
type ScanStage struct {
	engine *scoring.Engine
	locks  *docstore.Locks
}

// NewScanStage builds the scan stage.
func NewScanStage(engine *scoring.Engine, locks *docstore.Locks) *ScanStage {
	return &ScanStage{engine: engine, locks: locks}
}

func (s *ScanStage) Name() string        { return ScanStageName }
func (s *ScanStage) Label() string       { return "Scanning for signals" }
func (s *ScanStage) DependsOn() []string { return []string{"extract"} }

// Execute scans under the company lock and stores the result on the run.
func (s *ScanStage) Execute(ctx context.Context, run *stage.Run) (stage.Artifacts, error) {
	companyID := run.Company.ID
	if companyID == "" {
		return stage.Artifacts{}, services.Wrap(services.ErrInvalidInput, ScanStageName, "scan", "company not resolved", nil)
	}
	release, err := s.locks.Acquire(ctx, companyID)
	if err != nil {
		return stage.Artifacts{}, err
	}
	result, err := s.engine.Scan(ctx, companyID)
	release()
	if err != nil {
		return stage.Artifacts{}, stage.Fail(ScanStageName, "scan", "scan "+companyID, err)
	}
	run.Score = result

	run.Log().Info("company scanned",
		logging.String("run_id", result.RunID),
		logging.Int("score", result.Score),
		logging.Int("raw", result.Raw),
		logging.Int("hits", result.TotalHits()),
		logging.Int("documents", len(result.Documents)),
	)
	return stage.Artifacts{
		Message: fmt.Sprintf("%d hits across %d documents", result.TotalHits(), len(result.Documents)),
	}, nil
}

func (s *ScanStage) HealthCheck(context.Context) stage.Health {
	if s.engine == nil || s.engine.Catalog() == nil {
		return stage.Unhealthy(ScanStageName, "signal catalog not loaded")
	}
	return stage.Healthy(ScanStageName)
}

// ScoreStage persists the result produced by the scan stage.
type ScoreStage struct {
	results ResultSaver
	locks   *docstore.Locks
}

// NewScoreStage builds the score stage.
func NewScoreStage(results ResultSaver, locks *docstore.Locks) *ScoreStage {
	return &ScoreStage{results: results, locks: locks}
}

func (s *ScoreStage) Name() string        { return ScoreStageName }
func (s *ScoreStage) Label() string       { return "Scoring reports" }
func (s *ScoreStage) DependsOn() []string { return []string{ScanStageName} }

// Execute replaces the stored result of the company with the scanned one.
func (s *ScoreStage) Execute(ctx context.Context, run *stage.Run) (stage.Artifacts, error) {
	result := run.Score
	if result == nil {
		return stage.Artifacts{}, services.Wrap(services.ErrStageFailure, ScoreStageName, "persist", "no scan result to persist", nil)
	}
	release, err := s.locks.Acquire(ctx, result.CompanyID)
	if err != nil {
		return stage.Artifacts{}, err
	}
	err = s.results.SaveResult(ctx, result)
	release()
	if err != nil {
		return stage.Artifacts{}, stage.Fail(ScoreStageName, "persist", "store score result", err)
	}
	run.Log().Info("score stored",
		logging.String("run_id", result.RunID),
		logging.Int("score", result.Score),
		logging.EventType("score_stored"),
	)
	return stage.Artifacts{
		Companies: []string{result.CompanyID},
		Message:   fmt.Sprintf("score %d (raw %d)", result.Score, result.Raw),
	}, nil
}

func (s *ScoreStage) HealthCheck(context.Context) stage.Health {
	if s.results == nil {
		return stage.Unhealthy(ScoreStageName, "result store not configured")
	}
	return stage.Healthy(ScoreStageName)
}
