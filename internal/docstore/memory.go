package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and one-shot tools.
type Memory struct {
	mu        sync.RWMutex
	companies map[string]Company
	documents map[string]Document
	order     []string
	chunks    map[string][]TextChunk
	now       func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		companies: make(map[string]Company),
		documents: make(map[string]Document),
		chunks:    make(map[string][]TextChunk),
		now:       time.Now,
	}
}

func (m *Memory) Company(_ context.Context, id string) (Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.companies[id]
	if !ok {
		return Company{}, fmt.Errorf("company %q: %w", id, ErrNotFound)
	}
	return c, nil
}

func (m *Memory) Companies(_ context.Context) ([]Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Company, 0, len(m.companies))
	for _, c := range m.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Documents(_ context.Context, companyID string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Document
	for _, id := range m.order {
		doc := m.documents[id]
		if doc.CompanyID == companyID && doc.Active() {
			out = append(out, doc)
		}
	}
	SortDocuments(out)
	return out, nil
}

func (m *Memory) Chunks(_ context.Context, documentID string) ([]TextChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.chunks[documentID]
	out := make([]TextChunk, len(src))
	copy(out, src)
	return out, nil
}

func (m *Memory) UpsertCompany(_ context.Context, company Company) error {
	if company.ID == "" {
		return fmt.Errorf("upsert company: empty id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if company.UpdatedAt.IsZero() {
		company.UpdatedAt = m.now().UTC()
	}
	m.companies[company.ID] = company
	return nil
}

func (m *Memory) RecordDocument(_ context.Context, doc Document) (Document, error) {
	if doc.ID == "" || doc.CompanyID == "" {
		return Document{}, fmt.Errorf("record document: id and company are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.documents[doc.ID]; ok {
		return existing, nil
	}
	if doc.FiscalYear == "" {
		doc.FiscalYear = YearUnknown
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = m.now().UTC()
	}
	doc.SupersededBy = ""
	if doc.SourceURL != "" {
		for _, id := range m.order {
			old := m.documents[id]
			if old.CompanyID == doc.CompanyID && old.SourceURL == doc.SourceURL && old.Active() {
				old.SupersededBy = doc.ID
				m.documents[id] = old
			}
		}
	}
	m.documents[doc.ID] = doc
	m.order = append(m.order, doc.ID)
	return doc, nil
}

func (m *Memory) SaveChunks(_ context.Context, documentID string, chunks []TextChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[documentID]; !ok {
		return fmt.Errorf("save chunks for %q: %w", documentID, ErrNotFound)
	}
	if _, done := m.chunks[documentID]; done {
		return nil
	}
	cp := make([]TextChunk, len(chunks))
	copy(cp, chunks)
	for i := range cp {
		cp[i].DocumentID = documentID
	}
	m.chunks[documentID] = cp
	return nil
}

// SortDocuments orders documents by fiscal year descending with unknown years
// last, then by creation time and id.
func SortDocuments(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if a.FiscalYear != b.FiscalYear {
			if a.FiscalYear == YearUnknown {
				return false
			}
			if b.FiscalYear == YearUnknown {
				return true
			}
			return a.FiscalYear > b.FiscalYear
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
