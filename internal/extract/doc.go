// Package extract implements the extract stage: it turns downloaded
// documents into NFKC-normalised UTF-8 text and splits that text into
// overlapping chunks for scanning and search.
//
// PDFs go through the pdftotext command (poppler-utils), HTML through
// golang.org/x/net/html, and plain text is read as is. Documents that
// already have chunks are skipped, so the stage is safe to rerun.
package extract
