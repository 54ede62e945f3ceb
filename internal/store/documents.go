package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"dealradar/internal/docstore"
)

var _ docstore.Store = (*Store)(nil)

const companyColumns = "id, name, country, website, ir_url, updated_at"

const documentColumns = "id, company_id, fiscal_year, filename, size_bytes, source_url, content_type, local_path, created_at, superseded_by"

// UpsertCompany inserts the company or refreshes its descriptive fields.
// Empty hints never overwrite known values.
func (s *Store) UpsertCompany(ctx context.Context, company docstore.Company) error {
	if strings.TrimSpace(company.ID) == "" {
		return fmt.Errorf("upsert company: empty id")
	}
	if company.UpdatedAt.IsZero() {
		company.UpdatedAt = s.now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO companies (`+companyColumns+`) VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             name = excluded.name,
             country = COALESCE(excluded.country, companies.country),
             website = COALESCE(excluded.website, companies.website),
             ir_url = COALESCE(excluded.ir_url, companies.ir_url),
             updated_at = excluded.updated_at`,
		company.ID,
		company.Name,
		nullableString(company.Country),
		nullableString(company.Website),
		nullableString(company.IRURL),
		formatTime(company.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert company %s: %w", company.ID, err)
	}
	return nil
}

// Company returns one company.
func (s *Store) Company(ctx context.Context, id string) (docstore.Company, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+companyColumns+` FROM companies WHERE id = ?`, id)
	company, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Company{}, notFound("company", id)
	}
	if err != nil {
		return docstore.Company{}, fmt.Errorf("load company %s: %w", id, err)
	}
	return company, nil
}

// Companies returns every company ordered by id.
func (s *Store) Companies(ctx context.Context) ([]docstore.Company, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+companyColumns+` FROM companies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	var out []docstore.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, company)
	}
	return out, rows.Err()
}

// RecordDocument stores doc unless its id is already known, superseding an
// older active document fetched from the same source URL.
func (s *Store) RecordDocument(ctx context.Context, doc docstore.Document) (docstore.Document, error) {
	if doc.ID == "" || doc.CompanyID == "" {
		return docstore.Document{}, fmt.Errorf("record document: id and company are required")
	}
	if doc.FiscalYear == "" {
		doc.FiscalYear = docstore.YearUnknown
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	doc.SupersededBy = ""

	var stored docstore.Document
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanDocument(tx.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, doc.ID))
		if err == nil {
			stored = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
			doc.ID,
			doc.CompanyID,
			doc.FiscalYear,
			doc.Filename,
			doc.SizeBytes,
			nullableString(doc.SourceURL),
			nullableString(doc.ContentType),
			nullableString(doc.LocalPath),
			formatTime(doc.CreatedAt),
		); err != nil {
			return err
		}
		if doc.SourceURL != "" {
			if _, err := tx.ExecContext(ctx,
				`UPDATE documents SET superseded_by = ?
                 WHERE company_id = ? AND source_url = ? AND id <> ? AND superseded_by IS NULL`,
				doc.ID, doc.CompanyID, doc.SourceURL, doc.ID,
			); err != nil {
				return err
			}
		}
		stored = doc
		return nil
	})
	if err != nil {
		return docstore.Document{}, fmt.Errorf("record document %s: %w", doc.ID, err)
	}
	return stored, nil
}

// Documents returns the active documents of a company.
func (s *Store) Documents(ctx context.Context, companyID string) ([]docstore.Document, error) {
	return s.queryDocuments(ctx, builder.Select(documentColumns).From("documents").
		Where(sq.Eq{"company_id": companyID, "superseded_by": nil}))
}

// AllDocuments returns every document of a company, superseded ones included.
func (s *Store) AllDocuments(ctx context.Context, companyID string) ([]docstore.Document, error) {
	return s.queryDocuments(ctx, builder.Select(documentColumns).From("documents").
		Where(sq.Eq{"company_id": companyID}))
}

// Document returns one document by id.
func (s *Store) Document(ctx context.Context, id string) (docstore.Document, error) {
	docs, err := s.queryDocuments(ctx, builder.Select(documentColumns).From("documents").Where(sq.Eq{"id": id}))
	if err != nil {
		return docstore.Document{}, err
	}
	if len(docs) == 0 {
		return docstore.Document{}, notFound("document", id)
	}
	return docs[0], nil
}

func (s *Store) queryDocuments(ctx context.Context, query sq.SelectBuilder) ([]docstore.Document, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build document query: %w", err)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	docstore.SortDocuments(docs)
	return docs, nil
}

// SaveChunks stores the chunks of a document once. A document that has been
// chunked before keeps its original chunks.
func (s *Store) SaveChunks(ctx context.Context, documentID string, chunks []docstore.TextChunk) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var chunkedAt sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT chunked_at FROM documents WHERE id = ?`, documentID).Scan(&chunkedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("document", documentID)
		}
		if err != nil {
			return err
		}
		if chunkedAt.Valid {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO text_chunks (document_id, position, byte_offset, content) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, chunk := range chunks {
			if _, err := stmt.ExecContext(ctx, documentID, chunk.Position, chunk.Offset, chunk.Content); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `UPDATE documents SET chunked_at = ? WHERE id = ?`, formatTime(s.now()), documentID)
		return err
	})
	if err != nil {
		return fmt.Errorf("save chunks for %s: %w", documentID, err)
	}
	return nil
}

// Chunks returns the chunks of a document in position order.
func (s *Store) Chunks(ctx context.Context, documentID string) ([]docstore.TextChunk, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT document_id, position, byte_offset, content FROM text_chunks WHERE document_id = ? ORDER BY position`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []docstore.TextChunk
	for rows.Next() {
		var chunk docstore.TextChunk
		if err := rows.Scan(&chunk.DocumentID, &chunk.Position, &chunk.Offset, &chunk.Content); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// Chunked reports whether extraction already stored chunks for a document.
func (s *Store) Chunked(ctx context.Context, documentID string) (bool, error) {
	var chunkedAt sql.NullString
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT chunked_at FROM documents WHERE id = ?`, documentID).Scan(&chunkedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, notFound("document", documentID)
	}
	if err != nil {
		return false, fmt.Errorf("check chunks for %s: %w", documentID, err)
	}
	return chunkedAt.Valid, nil
}

func scanCompany(scanner rowScanner) (docstore.Company, error) {
	var (
		company    docstore.Company
		country    sql.NullString
		website    sql.NullString
		irURL      sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&company.ID, &company.Name, &country, &website, &irURL, &updatedRaw); err != nil {
		return docstore.Company{}, err
	}
	company.Country = country.String
	company.Website = website.String
	company.IRURL = irURL.String
	company.UpdatedAt = parseTimeOrZero(updatedRaw.String)
	return company, nil
}

func scanDocument(scanner rowScanner) (docstore.Document, error) {
	var (
		doc          docstore.Document
		sourceURL    sql.NullString
		contentType  sql.NullString
		localPath    sql.NullString
		createdRaw   sql.NullString
		supersededBy sql.NullString
	)
	if err := scanner.Scan(
		&doc.ID,
		&doc.CompanyID,
		&doc.FiscalYear,
		&doc.Filename,
		&doc.SizeBytes,
		&sourceURL,
		&contentType,
		&localPath,
		&createdRaw,
		&supersededBy,
	); err != nil {
		return docstore.Document{}, err
	}
	doc.SourceURL = sourceURL.String
	doc.ContentType = contentType.String
	doc.LocalPath = localPath.String
	doc.CreatedAt = parseTimeOrZero(createdRaw.String)
	doc.SupersededBy = supersededBy.String
	return doc, nil
}
