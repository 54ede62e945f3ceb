package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	sq "github.com/Masterminds/squirrel"
)

// IndexEntry is one chunk as stored in the full-text index.
type IndexEntry struct {
	CompanyID  string
	DocumentID string
	FiscalYear string
	Filename   string
	Position   int
	Content    string
}

// SearchHit is one full-text match.
type SearchHit struct {
	IndexEntry
	Rank float64
}

// ReplaceIndex swaps the indexed chunks of a company for entries.
func (s *Store) ReplaceIndex(ctx context.Context, companyID string, entries []IndexEntry) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_index WHERE company_id = ?`, companyID); err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO chunk_index (content, company_id, document_id, fiscal_year, filename, position)
             VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, entry := range entries {
			if _, err := stmt.ExecContext(ctx,
				entry.Content, companyID, entry.DocumentID, entry.FiscalYear, entry.Filename, entry.Position,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace index for %s: %w", companyID, err)
	}
	return nil
}

// IndexedChunks counts the indexed chunks of a company, or of every company
// when companyID is empty.
func (s *Store) IndexedChunks(ctx context.Context, companyID string) (int, error) {
	query := builder.Select("COUNT(1)").From("chunk_index")
	if companyID != "" {
		query = query.Where(sq.Eq{"company_id": companyID})
	}
	stmt, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build index count: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count index rows: %w", err)
	}
	return count, nil
}

// Search runs a ranked full-text query over the index. Free text is reduced
// to its words; an input without words returns no hits. companyID optionally
// restricts the search to one company.
func (s *Store) Search(ctx context.Context, text, companyID string, limit int) ([]SearchHit, error) {
	match := MatchExpression(text)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 8
	}
	query := builder.
		Select("company_id", "document_id", "fiscal_year", "filename", "position", "content", "bm25(chunk_index)").
		From("chunk_index").
		Where("chunk_index MATCH ?", match).
		OrderBy("bm25(chunk_index)").
		Limit(uint64(limit))
	if companyID != "" {
		query = query.Where(sq.Eq{"company_id": companyID})
	}
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var (
			hit  SearchHit
			year sql.NullString
			name sql.NullString
		)
		if err := rows.Scan(&hit.CompanyID, &hit.DocumentID, &year, &name, &hit.Position, &hit.Content, &hit.Rank); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hit.FiscalYear = year.String
		hit.Filename = name.String
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// MatchExpression turns free text into an FTS5 query that ORs the quoted
// words of the input. Single characters are dropped.
func MatchExpression(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(words))
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if len([]rune(word)) < 2 {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		terms = append(terms, `"`+word+`"`)
	}
	return strings.Join(terms, " OR ")
}
