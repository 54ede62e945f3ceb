package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ReportPDF returns a body that passes the download stage's PDF sniffing:
// the %PDF header followed by phrase repeated n times.
func ReportPDF(phrase string, n int) string {
	if n < 1 {
		n = 1
	}
	return "%PDF-1.7\n" + strings.Repeat(phrase, n)
}

// WriteFixture writes body to path, creating parent directories.
func WriteFixture(t testing.TB, path, body string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
