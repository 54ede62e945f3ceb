package extract

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealradar/internal/docstore"
	"dealradar/internal/services"
	"dealradar/internal/stage"
	"dealradar/internal/testsupport"
)

func TestChunkerOverlapAndOffsets(t *testing.T) {
	text := strings.Repeat("abcdefghij", 250)
	chunks := Chunker{Size: 1000, Overlap: 200, MinChars: 50}.Split("doc", text)

	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Position)
		assert.Equal(t, i*800, chunk.Offset)
		assert.Equal(t, text[chunk.Offset:chunk.Offset+len(chunk.Content)], chunk.Content)
	}
	assert.Len(t, chunks[0].Content, 1000)
	assert.Len(t, chunks[2].Content, 900)
}

func TestChunkerDropsSparseWindowsKeepsOffsets(t *testing.T) {
	text := strings.Repeat("x", 60) + strings.Repeat(" ", 940) + strings.Repeat("y", 1000)
	chunks := Chunker{Size: 500, Overlap: 0, MinChars: 50}.Split("doc", text)

	require.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0].Offset)
	assert.Equal(t, 1000, chunks[1].Offset)
	assert.Equal(t, 1, chunks[1].Position)
	assert.Equal(t, 1500, chunks[2].Offset)
}

func TestChunkerCutsOnRuneBoundaries(t *testing.T) {
	text := strings.Repeat("ä", 1500)
	chunks := Chunker{Size: 1001, Overlap: 201, MinChars: 1}.Split("doc", text)
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk.Content), "chunk at %d is not valid UTF-8", chunk.Offset)
		assert.True(t, utf8.RuneStart(text[chunk.Offset]))
	}
	last := chunks[len(chunks)-1]
	assert.Equal(t, len(text), last.Offset+len(last.Content))

	tiny := Chunker{Size: 1, Overlap: 0, MinChars: 1}.Split("doc", "äö")
	require.Len(t, tiny, 2)
	assert.Equal(t, "ä", tiny[0].Content)
}

func TestHTMLTextSkipsScripts(t *testing.T) {
	out, err := HTMLText(strings.NewReader(`<html><head><style>p{}</style></head><body>
<h1>Annual   Report</h1><script>var x = "hidden";</script><p>Going concern <b>doubt</b></p></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Annual Report\nGoing concern doubt", string(out))
}

func TestNormalize(t *testing.T) {
	text, err := Normalize([]byte("ﬁnancial\fstatements\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "financial\nstatements", text)

	_, err = Normalize([]byte{0xff, 0xfe, 'a'})
	assert.ErrorIs(t, err, services.ErrCorruptInput)
}

const fakePDFToText = `#!/bin/sh
case "$4" in
  *broken*) echo "Syntax Error: broken PDF" >&2; exit 1 ;;
esac
cat "$4"
`

func seedFile(t *testing.T, docs docstore.Store, dir, companyID, name, body string) docstore.Document {
	t.Helper()
	path := filepath.Join(dir, name)
	testsupport.WriteFixture(t, path, body)
	id := docstore.DocumentID(companyID, []byte(body))
	doc, err := docs.RecordDocument(context.Background(), docstore.Document{
		ID:          id,
		CompanyID:   companyID,
		FiscalYear:  "2023",
		Filename:    docstore.DocumentFilename(companyID, "2023", id, filepath.Ext(name)),
		SizeBytes:   int64(len(body)),
		SourceURL:   "https://example.com/" + name,
		ContentType: "application/pdf",
		LocalPath:   path,
	})
	require.NoError(t, err)
	return doc
}

func TestStageExtractsAndSkipsBrokenDocuments(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinary("fake-pdftotext", fakePDFToText))
	cfg.Extract.PDFToTextBinary = "fake-pdftotext"
	docs := docstore.NewMemory()
	dir := t.TempDir()
	good := seedFile(t, docs, dir, "acme", "ar.pdf", strings.Repeat("The auditor notes a material uncertainty. ", 60))
	broken := seedFile(t, docs, dir, "acme", "broken.pdf", "garbage")

	st := NewStage(cfg, docs, nil)
	assert.True(t, st.HealthCheck(context.Background()).Ready)

	run := &stage.Run{Company: docstore.Company{ID: "acme"}}
	artifacts, err := st.Execute(context.Background(), run)
	require.NoError(t, err)
	assert.Contains(t, artifacts.Message, "1 documents extracted")

	chunks, err := docs.Chunks(context.Background(), good.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, 3)
	none, err := docs.Chunks(context.Background(), broken.ID)
	require.NoError(t, err)
	assert.Empty(t, none)

	again, err := st.Execute(context.Background(), run)
	require.NoError(t, err)
	assert.Contains(t, again.Message, "0 documents extracted")
}

func TestStageFailsWhenNothingHasText(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinary("fake-pdftotext", fakePDFToText))
	cfg.Extract.PDFToTextBinary = "fake-pdftotext"
	docs := docstore.NewMemory()
	seedFile(t, docs, t.TempDir(), "acme", "broken.pdf", "garbage")

	_, err := NewStage(cfg, docs, nil).Execute(context.Background(), &stage.Run{Company: docstore.Company{ID: "acme"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrCorruptInput)
	assert.Contains(t, err.Error(), "broken PDF")
}

func TestStageWithoutDocuments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := NewStage(cfg, docstore.NewMemory(), nil).Execute(context.Background(), &stage.Run{Company: docstore.Company{ID: "acme"}})
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestHealthCheckReportsMissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Extract.PDFToTextBinary = "definitely-not-installed-pdftotext"
	health := NewStage(cfg, docstore.NewMemory(), nil).HealthCheck(context.Background())
	assert.False(t, health.Ready)
	assert.Contains(t, health.Detail, "not found")
}
