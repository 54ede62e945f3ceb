package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"dealradar/internal/docstore"
	"dealradar/internal/services"
)

// Extractor turns a stored document into plain text.
type Extractor interface {
	Extract(ctx context.Context, doc docstore.Document) (string, error)
}

// FileExtractor reads documents from their local path.
type FileExtractor struct {
	PDFToText string
}

// Extract implements Extractor.
func (e FileExtractor) Extract(ctx context.Context, doc docstore.Document) (string, error) {
	if doc.LocalPath == "" {
		return "", services.Wrap(services.ErrNotFound, "extract", "read", fmt.Sprintf("document %s has no local file", doc.ID), nil)
	}
	var (
		raw []byte
		err error
	)
	switch documentKind(doc) {
	case kindPDF:
		raw, err = e.pdfToText(ctx, doc.LocalPath)
	case kindHTML:
		raw, err = htmlText(doc.LocalPath)
	default:
		raw, err = os.ReadFile(doc.LocalPath)
	}
	if err != nil {
		return "", err
	}
	return Normalize(raw)
}

type kind int

const (
	kindText kind = iota
	kindPDF
	kindHTML
)

func documentKind(doc docstore.Document) kind {
	contentType := strings.ToLower(doc.ContentType)
	ext := strings.ToLower(filepath.Ext(doc.LocalPath))
	switch {
	case strings.Contains(contentType, "pdf"), ext == ".pdf":
		return kindPDF
	case strings.Contains(contentType, "html"), ext == ".html", ext == ".htm":
		return kindHTML
	default:
		return kindText
	}
}

func (e FileExtractor) pdfToText(ctx context.Context, path string) ([]byte, error) {
	binary := e.PDFToText
	if binary == "" {
		binary = "pdftotext"
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-q", "-enc", "UTF-8", path, "-") //nolint:gosec
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrCorruptInput, "extract", "pdftotext",
			strings.TrimSpace(stderr.String()), err)
	}
	return out, nil
}

var skippedElements = map[string]bool{"script": true, "style": true, "noscript": true, "template": true}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "table": true,
}

func htmlText(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return HTMLText(file)
}

// HTMLText returns the visible text of an HTML document with block
// elements separated by newlines.
func HTMLText(r io.Reader) ([]byte, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, services.Wrap(services.ErrCorruptInput, "extract", "html", "parse document", err)
	}
	var buf bytes.Buffer
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				if buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
					buf.WriteByte(' ')
				}
				buf.WriteString(text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] && buf.Len() > 0 &&
			!bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
			buf.WriteByte('\n')
		}
	}
	walk(doc)
	return bytes.TrimSpace(buf.Bytes()), nil
}

// Normalize validates UTF-8, applies NFKC and turns page breaks into
// newlines.
func Normalize(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", services.Wrap(services.ErrCorruptInput, "extract", "normalize", "text is not valid UTF-8", nil)
	}
	text := norm.NFKC.String(string(raw))
	text = strings.ReplaceAll(text, "\f", "\n")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text), nil
}
