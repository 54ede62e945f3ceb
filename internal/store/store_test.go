package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dealradar/internal/docstore"
	"dealradar/internal/queue"
	"dealradar/internal/scoring"
	"dealradar/internal/services"
	"dealradar/internal/store"
	"dealradar/internal/testsupport"
)

func TestOpenCreatesSchemaOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if err := st.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
}

func TestTaskRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	task := queue.Task{
		ID:             "task-1",
		CompanyName:    "Siemens AG",
		Website:        "https://siemens.com",
		Status:         queue.StatusRunning,
		Progress:       0.5,
		CurrentStep:    "Downloading PDFs",
		StepsCompleted: []string{"discover", "collect"},
		Companies:      []string{"siemens_ag"},
		Documents:      []string{},
		Log:            []string{"12:00:00 INFO started"},
		CreatedAt:      created,
		StartedAt:      created.Add(time.Second),
		UpdatedAt:      created.Add(2 * time.Second),
	}
	if err := st.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}
	task.Status = queue.StatusFailed
	task.Error = "download failed"
	task.ErrorKind = "stage_failure"
	task.FinishedAt = created.Add(time.Minute)
	if err := st.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask update failed: %v", err)
	}

	loaded, err := st.Task(ctx, "task-1")
	if err != nil {
		t.Fatalf("Task failed: %v", err)
	}
	if loaded.Status != queue.StatusFailed || loaded.Error != "download failed" || loaded.Progress != 0.5 {
		t.Fatalf("unexpected task: %#v", loaded)
	}
	if len(loaded.StepsCompleted) != 2 || loaded.Companies[0] != "siemens_ag" || len(loaded.Log) != 1 {
		t.Fatalf("lists not restored: %#v", loaded)
	}
	if !loaded.FinishedAt.Equal(task.FinishedAt) || !loaded.CreatedAt.Equal(created) {
		t.Fatalf("timestamps not restored: %#v", loaded)
	}

	failed, err := st.TasksByStatus(ctx, queue.StatusFailed, queue.StatusCancelled)
	if err != nil || len(failed) != 1 {
		t.Fatalf("TasksByStatus = %v, %v", failed, err)
	}
	if _, err := st.Task(ctx, "missing"); services.KindOf(err) != services.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRegistryRestoresFromStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := queue.NewRegistry(queue.WithPersister(st))
	running, _ := first.Create(ctx, queue.Task{CompanyName: "Alpha"})
	if _, err := first.Update(ctx, running.ID, func(t *queue.Task) error {
		t.Status = queue.StatusRunning
		return nil
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	waiting, _ := first.Create(ctx, queue.Task{CompanyName: "Beta"})

	second := queue.NewRegistry(queue.WithPersister(st))
	pending, err := second.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != waiting.ID {
		t.Fatalf("unexpected pending: %#v", pending)
	}
	reclaimed, err := st.Task(ctx, running.ID)
	if err != nil {
		t.Fatalf("Task failed: %v", err)
	}
	if reclaimed.Status != queue.StatusFailed || reclaimed.Error != queue.RestartReason {
		t.Fatalf("expected reclaimed task, got %#v", reclaimed)
	}
}

func TestRegistryRestorePrunesFinishedTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, status := range []queue.Status{queue.StatusCompleted, queue.StatusFailed, queue.StatusPending, queue.StatusCompleted} {
		task := queue.Task{
			ID:          fmt.Sprintf("task-%d", i),
			CompanyName: fmt.Sprintf("Company %d", i),
			Status:      status,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := st.SaveTask(ctx, task); err != nil {
			t.Fatalf("SaveTask failed: %v", err)
		}
	}

	reg := queue.NewRegistry(queue.WithPersister(st), queue.WithRetention(2))
	pending, err := reg.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "task-2" {
		t.Fatalf("unexpected pending: %#v", pending)
	}
	for _, id := range []string{"task-0", "task-1"} {
		if _, err := st.Task(ctx, id); services.KindOf(err) != services.KindNotFound {
			t.Fatalf("expected %s to be pruned, got %v", id, err)
		}
	}
	left, err := st.LoadTasks(ctx)
	if err != nil || len(left) != 2 {
		t.Fatalf("LoadTasks = %d tasks, %v", len(left), err)
	}
	if err := st.DeleteTasks(ctx); err != nil {
		t.Fatalf("empty delete failed: %v", err)
	}
}

func TestRecordDocumentSupersedesSameSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.UpsertCompany(ctx, docstore.Company{ID: "acme", Name: "ACME", Website: "https://acme.test"}); err != nil {
		t.Fatalf("UpsertCompany failed: %v", err)
	}
	old := docstore.Document{ID: "aaaa", CompanyID: "acme", FiscalYear: "2022", Filename: "acme_2022_aaaa.pdf", SourceURL: "https://acme.test/ar.pdf"}
	if _, err := st.RecordDocument(ctx, old); err != nil {
		t.Fatalf("RecordDocument failed: %v", err)
	}
	again, err := st.RecordDocument(ctx, docstore.Document{ID: "aaaa", CompanyID: "acme", FiscalYear: "1999"})
	if err != nil {
		t.Fatalf("RecordDocument repeat failed: %v", err)
	}
	if again.FiscalYear != "2022" {
		t.Fatalf("expected repeat to return stored document, got %#v", again)
	}

	newer := docstore.Document{ID: "bbbb", CompanyID: "acme", FiscalYear: "2023", Filename: "acme_2023_bbbb.pdf", SourceURL: "https://acme.test/ar.pdf"}
	if _, err := st.RecordDocument(ctx, newer); err != nil {
		t.Fatalf("RecordDocument newer failed: %v", err)
	}
	other := docstore.Document{ID: "cccc", CompanyID: "acme", Filename: "acme_unknown_cccc.pdf", SourceURL: "https://acme.test/misc.pdf"}
	if _, err := st.RecordDocument(ctx, other); err != nil {
		t.Fatalf("RecordDocument other failed: %v", err)
	}

	active, err := st.Documents(ctx, "acme")
	if err != nil {
		t.Fatalf("Documents failed: %v", err)
	}
	if len(active) != 2 || active[0].ID != "bbbb" || active[1].ID != "cccc" {
		t.Fatalf("unexpected active documents: %#v", active)
	}
	if active[1].FiscalYear != docstore.YearUnknown {
		t.Fatalf("expected unknown year default, got %q", active[1].FiscalYear)
	}
	all, err := st.AllDocuments(ctx, "acme")
	if err != nil {
		t.Fatalf("AllDocuments failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected superseded document kept, got %d", len(all))
	}
	superseded, err := st.Document(ctx, "aaaa")
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	if superseded.SupersededBy != "bbbb" {
		t.Fatalf("expected aaaa superseded by bbbb, got %q", superseded.SupersededBy)
	}
}

func TestUpsertCompanyKeepsKnownHints(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.UpsertCompany(ctx, docstore.Company{ID: "acme", Name: "ACME", Website: "https://acme.test", Country: "DE"}); err != nil {
		t.Fatalf("UpsertCompany failed: %v", err)
	}
	if err := st.UpsertCompany(ctx, docstore.Company{ID: "acme", Name: "ACME AG", IRURL: "https://acme.test/ir"}); err != nil {
		t.Fatalf("UpsertCompany update failed: %v", err)
	}
	company, err := st.Company(ctx, "acme")
	if err != nil {
		t.Fatalf("Company failed: %v", err)
	}
	if company.Name != "ACME AG" || company.Website != "https://acme.test" || company.IRURL != "https://acme.test/ir" || company.Country != "DE" {
		t.Fatalf("unexpected company: %#v", company)
	}
	if _, err := st.Company(ctx, "missing"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected docstore not found, got %v", err)
	}
}

func TestSaveChunksIsWriteOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	doc := testsupport.SeedDocument(t, st, "acme", "2024", "first text")
	if err := st.SaveChunks(ctx, doc.ID, []docstore.TextChunk{{Position: 0, Content: "second"}}); err != nil {
		t.Fatalf("SaveChunks repeat failed: %v", err)
	}
	chunks, err := st.Chunks(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Chunks failed: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Content != "first text" || chunks[0].DocumentID != doc.ID {
		t.Fatalf("unexpected chunks: %#v", chunks)
	}
	chunked, err := st.Chunked(ctx, doc.ID)
	if err != nil || !chunked {
		t.Fatalf("Chunked = %v, %v", chunked, err)
	}
	if err := st.SaveChunks(ctx, "missing", nil); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected not found for unknown document, got %v", err)
	}
}

func TestSaveResultReplacesAtomically(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, id := range []string{"acme", "beta"} {
		if err := st.UpsertCompany(ctx, docstore.Company{ID: id, Name: id}); err != nil {
			t.Fatalf("UpsertCompany failed: %v", err)
		}
	}
	first := &scoring.ScoreResult{CompanyID: "acme", RunID: "run-1", CatalogVersion: "v1", Score: 3, Raw: 30, ComputedAt: time.Now().UTC()}
	if err := st.SaveResult(ctx, first); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}
	second := &scoring.ScoreResult{
		CompanyID:  "acme",
		RunID:      "run-2",
		Score:      5,
		Raw:        50,
		Categories: []scoring.CategoryScore{{Category: "carve_out", Hits: 4}},
		ComputedAt: time.Now().UTC(),
	}
	if err := st.SaveResult(ctx, second); err != nil {
		t.Fatalf("SaveResult replace failed: %v", err)
	}
	if err := st.SaveResult(ctx, &scoring.ScoreResult{CompanyID: "beta", RunID: "run-3", Score: 7, Raw: 70, ComputedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("SaveResult beta failed: %v", err)
	}

	loaded, err := st.Result(ctx, "acme")
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if loaded.RunID != "run-2" || loaded.Score != 5 || loaded.TotalHits() != 4 {
		t.Fatalf("unexpected result: %#v", loaded)
	}
	ranked, err := st.Results(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if len(ranked) != 2 || ranked[0].CompanyID != "beta" {
		t.Fatalf("unexpected ranking: %#v", ranked)
	}
	filtered, _ := st.Results(ctx, 6, 0)
	if len(filtered) != 1 {
		t.Fatalf("expected min score filter to keep 1, got %d", len(filtered))
	}
	if _, err := st.Result(ctx, "missing"); services.KindOf(err) != services.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Companies != 2 || stats.ScoredCompanies != 2 || stats.AverageScore != 6 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestConcurrentResultWritesLastWriterWins(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	if err := st.UpsertCompany(ctx, docstore.Company{ID: "acme", Name: "ACME"}); err != nil {
		t.Fatalf("UpsertCompany failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result := &scoring.ScoreResult{CompanyID: "acme", RunID: fmt.Sprintf("run-%d", i), Score: i, ComputedAt: time.Now().UTC()}
			if err := st.SaveResult(ctx, result); err != nil {
				t.Errorf("SaveResult %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	loaded, err := st.Result(ctx, "acme")
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if fmt.Sprintf("run-%d", loaded.Score) != loaded.RunID {
		t.Fatalf("result mixes two writes: %#v", loaded)
	}
}

func TestSearchIndex(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	entries := []store.IndexEntry{
		{DocumentID: "d1", FiscalYear: "2024", Filename: "acme_2024_d1.pdf", Position: 0, Content: "The group announced the divestiture of its lighting division."},
		{DocumentID: "d1", FiscalYear: "2024", Filename: "acme_2024_d1.pdf", Position: 1, Content: "Revenue grew in the automation segment."},
	}
	if err := st.ReplaceIndex(ctx, "acme", entries); err != nil {
		t.Fatalf("ReplaceIndex failed: %v", err)
	}
	if err := st.ReplaceIndex(ctx, "beta", []store.IndexEntry{{DocumentID: "d2", Content: "A divestiture is planned."}}); err != nil {
		t.Fatalf("ReplaceIndex beta failed: %v", err)
	}

	hits, err := st.Search(ctx, "Which divestiture?", "", 8)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %#v", hits)
	}
	scoped, err := st.Search(ctx, "divestiture", "acme", 8)
	if err != nil {
		t.Fatalf("scoped Search failed: %v", err)
	}
	if len(scoped) != 1 || scoped[0].CompanyID != "acme" || scoped[0].FiscalYear != "2024" {
		t.Fatalf("unexpected scoped hits: %#v", scoped)
	}

	if err := st.ReplaceIndex(ctx, "acme", entries[1:]); err != nil {
		t.Fatalf("ReplaceIndex again failed: %v", err)
	}
	count, err := st.IndexedChunks(ctx, "acme")
	if err != nil || count != 1 {
		t.Fatalf("IndexedChunks = %d, %v", count, err)
	}
	if hits, err := st.Search(ctx, "?!", "", 8); err != nil || hits != nil {
		t.Fatalf("expected empty query to return nothing, got %v, %v", hits, err)
	}
}

func TestMatchExpression(t *testing.T) {
	cases := map[string]string{
		"Carve-out plans?":    `"carve" OR "out" OR "plans"`,
		"a b":                 "",
		`he said "spin off"`:  `"he" OR "said" OR "spin" OR "off"`,
		"Übernahme Übernahme": `"übernahme"`,
	}
	for input, want := range cases {
		if got := store.MatchExpression(input); got != want {
			t.Fatalf("MatchExpression(%q) = %q, want %q", input, got, want)
		}
	}
}
