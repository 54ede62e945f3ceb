package workflow_test

import (
	"context"
	"strings"
	"testing"

	"dealradar/internal/services"
	"dealradar/internal/testsupport"
	"dealradar/internal/workflow"
)

func TestParseSubmissionsWithHeader(t *testing.T) {
	input := "\uFEFFcompany_id;company_name;website;country\n" +
		"# comment\n" +
		"c1; ACME Corp ;acme.test;DE\n" +
		"\n" +
		"c2;Globex;https://globex.test;\n"

	got, err := workflow.ParseSubmissions(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseSubmissions failed: %v", err)
	}
	want := []workflow.Submission{
		{CompanyName: "ACME Corp", Website: "https://acme.test", Country: "DE"},
		{CompanyName: "Globex", Website: "https://globex.test"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %#v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d: expected %#v, got %#v", i, want[i], got[i])
		}
	}
}

func TestParseSubmissionsWithoutHeader(t *testing.T) {
	input := "ACME\n" +
		"c2;Globex;US;globex.test;ir.globex.test/reports\n"

	got, err := workflow.ParseSubmissions(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseSubmissions failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %#v", got)
	}
	if got[0] != (workflow.Submission{CompanyName: "ACME"}) {
		t.Fatalf("unexpected name-only row: %#v", got[0])
	}
	want := workflow.Submission{
		CompanyName: "Globex",
		Country:     "US",
		Website:     "https://globex.test",
		IRURL:       "https://ir.globex.test/reports",
	}
	if got[1] != want {
		t.Fatalf("expected %#v, got %#v", want, got[1])
	}
}

func TestParseSubmissionsRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"header only":    "company_name;website\n",
		"short row":      "ACME\nc2;Globex;US\n",
		"missing name":   "company_name;website\n;acme.test\n",
		"unclosed quote": "\"ACME\n",
	}
	for name, input := range cases {
		_, err := workflow.ParseSubmissions(strings.NewReader(input))
		if services.KindOf(err) != services.KindInvalidInput {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}

	_, err := workflow.ParseSubmissions(strings.NewReader("ACME\nc2;Globex;US\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected the offending line in %v", err)
	}
}

func TestSubmitBatchCreatesTasksInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := newHarness(t, cfg, newStubStage("discover"))

	tasks, err := h.manager.SubmitBatch(context.Background(), []workflow.Submission{
		{CompanyName: "ACME", Website: "https://acme.test", Country: "DE"},
		{CompanyName: "Globex"},
		{CompanyName: "ACME"},
	})
	if err != nil {
		t.Fatalf("SubmitBatch failed: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	if tasks[0].CompanyName != "ACME" || tasks[0].Website != "https://acme.test" || tasks[0].Country != "DE" {
		t.Fatalf("first task lost its request fields: %#v", tasks[0])
	}
	if tasks[0].ID == tasks[2].ID {
		t.Fatal("repeated companies must create independent tasks")
	}
	list := h.manager.List(0)
	if len(list) != 3 || list[0].ID != tasks[2].ID || list[2].ID != tasks[0].ID {
		t.Fatalf("expected batch order to be preserved, got %#v", list)
	}
}

func TestSubmitBatchIsAllOrNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := newHarness(t, cfg, newStubStage("discover"))
	ctx := context.Background()

	_, err := h.manager.SubmitBatch(ctx, []workflow.Submission{
		{CompanyName: "ACME"},
		{CompanyName: "Globex", Website: "ftp://globex.test"},
	})
	if services.KindOf(err) != services.KindInvalidInput {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if !strings.Contains(err.Error(), "row 2") {
		t.Fatalf("expected the offending row in %v", err)
	}
	if _, err := h.manager.SubmitBatch(ctx, nil); services.KindOf(err) != services.KindInvalidInput {
		t.Fatalf("expected empty batch to be rejected, got %v", err)
	}
	tooMany := make([]workflow.Submission, workflow.MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i].CompanyName = "ACME"
	}
	if _, err := h.manager.SubmitBatch(ctx, tooMany); services.KindOf(err) != services.KindInvalidInput {
		t.Fatalf("expected oversized batch to be rejected, got %v", err)
	}
	if got := h.manager.List(0); len(got) != 0 {
		t.Fatalf("rejected batches must not create tasks: %d", len(got))
	}
}
