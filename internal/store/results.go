package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"dealradar/internal/scoring"
)

// Stats summarizes what the store holds.
type Stats struct {
	Companies       int     `json:"companies"`
	ScoredCompanies int     `json:"scored_companies"`
	Documents       int     `json:"documents"`
	Superseded      int     `json:"superseded_documents"`
	Chunks          int     `json:"chunks"`
	Tasks           int     `json:"tasks"`
	AverageScore    float64 `json:"average_score"`
}

// SaveResult replaces the stored score result of a company in one
// transaction. Readers see either the previous result or the new one.
func (s *Store) SaveResult(ctx context.Context, result *scoring.ScoreResult) error {
	if result == nil || result.CompanyID == "" {
		return fmt.Errorf("save result: company id is required")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result %s: %w", result.CompanyID, err)
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO score_results
             (company_id, run_id, catalog_version, score, raw, penalty, total_hits, computed_at, result_json)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.CompanyID,
			result.RunID,
			result.CatalogVersion,
			result.Score,
			result.Raw,
			result.Penalty,
			result.TotalHits(),
			formatTime(result.ComputedAt),
			string(payload),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("save result %s: %w", result.CompanyID, err)
	}
	return nil
}

// Result returns the stored score result of a company.
func (s *Store) Result(ctx context.Context, companyID string) (*scoring.ScoreResult, error) {
	var payload string
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT result_json FROM score_results WHERE company_id = ?`, companyID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("score result", companyID)
	}
	if err != nil {
		return nil, fmt.Errorf("load result %s: %w", companyID, err)
	}
	return decodeResult(payload)
}

// Results returns stored results ranked by score. A positive limit bounds
// the list; minScore filters out lower scores.
func (s *Store) Results(ctx context.Context, minScore, limit int) ([]*scoring.ScoreResult, error) {
	query := builder.Select("result_json").From("score_results").
		OrderBy("score DESC", "raw DESC", "company_id ASC")
	if minScore > 0 {
		query = query.Where("score >= ?", minScore)
	}
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build results query: %w", err)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []*scoring.ScoreResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		result, err := decodeResult(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

// Stats counts stored rows.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var stats Stats
	var average sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT
            (SELECT COUNT(1) FROM companies),
            (SELECT COUNT(1) FROM score_results),
            (SELECT COUNT(1) FROM documents WHERE superseded_by IS NULL),
            (SELECT COUNT(1) FROM documents WHERE superseded_by IS NOT NULL),
            (SELECT COUNT(1) FROM text_chunks),
            (SELECT COUNT(1) FROM tasks),
            (SELECT AVG(score) FROM score_results)`,
	).Scan(
		&stats.Companies,
		&stats.ScoredCompanies,
		&stats.Documents,
		&stats.Superseded,
		&stats.Chunks,
		&stats.Tasks,
		&average,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	stats.AverageScore = average.Float64
	return stats, nil
}

func decodeResult(payload string) (*scoring.ScoreResult, error) {
	var result scoring.ScoreResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &result, nil
}
