package docstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// YearUnknown marks documents whose fiscal year could not be determined.
const YearUnknown = "unknown"

// Company is an issuer whose disclosures are ingested.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country,omitempty"`
	Website   string    `json:"website,omitempty"`
	IRURL     string    `json:"ir_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Link is a candidate source document found on an investor relations page.
type Link struct {
	CompanyID string `json:"company_id"`
	URL       string `json:"url"`
	Text      string `json:"text,omitempty"`
	Year      string `json:"year"`
	Annual    bool   `json:"annual"`
}

// Document is one downloaded source file. Documents are immutable once
// recorded; a newer download of the same source marks the older one
// superseded.
type Document struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	FiscalYear   string    `json:"fiscal_year"`
	Filename     string    `json:"filename"`
	SizeBytes    int64     `json:"size_bytes"`
	SourceURL    string    `json:"source_url,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	LocalPath    string    `json:"local_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	SupersededBy string    `json:"superseded_by,omitempty"`
}

// Active reports whether the document participates in scans.
func (d Document) Active() bool { return d.SupersededBy == "" }

// TextChunk is a contiguous slice of a document's extracted text. Offset is
// the byte offset of Content within the full document text.
type TextChunk struct {
	DocumentID string `json:"document_id"`
	Position   int    `json:"position"`
	Offset     int    `json:"offset"`
	Content    string `json:"content"`
}

// DocumentID derives the stable identifier of a document from its owner and
// its bytes.
func DocumentID(companyID string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(companyID))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// DocumentFilename builds the canonical storage filename for a document.
func DocumentFilename(companyID, year, id, ext string) string {
	if year == "" {
		year = YearUnknown
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "pdf"
	}
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_%s_%s.%s", companyID, year, short, ext)
}

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// CompanySlug derives a company identifier from a display name:
// "Siemens Energy AG" becomes "siemens_energy_ag".
func CompanySlug(name string) string {
	decomposed := norm.NFKD.String(strings.ToLower(strings.TrimSpace(name)))
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		switch r {
		case 'ß':
			b.WriteString("ss")
			continue
		case '&':
			b.WriteString(" and ")
			continue
		}
		b.WriteRune(r)
	}
	slug := slugSeparators.ReplaceAllString(b.String(), "_")
	return strings.Trim(slug, "_")
}
