package workflow

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"dealradar/internal/services"
)

// ParseSubmissions reads a semicolon separated company list.
//
// With a header row, columns are matched by name: company_name is required,
// website, ir_url and country are optional, anything else (company_id
// included) is ignored. Without a header, a row is either a single company
// name or the five column layout company_id;company_name;country;website;ir_url.
// Websites without a scheme are taken as https.
func ParseSubmissions(r io.Reader) ([]Submission, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		out    []Submission
		header map[string]int
	)
	for first := true; ; first = false {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrInvalidInput, "workflow", "parse_csv", "malformed CSV", err)
		}
		line, _ := reader.FieldPos(0)
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		if first {
			record[0] = strings.TrimPrefix(record[0], "\uFEFF")
			if h := headerIndex(record); h != nil {
				header = h
				continue
			}
		}
		if blank(record) {
			continue
		}

		var sub Submission
		switch {
		case header != nil:
			sub = Submission{
				CompanyName: column(record, header, "company_name"),
				Website:     column(record, header, "website"),
				IRURL:       column(record, header, "ir_url"),
				Country:     column(record, header, "country"),
			}
		case len(record) == 1:
			sub = Submission{CompanyName: record[0]}
		case len(record) >= 5:
			sub = Submission{CompanyName: record[1], Country: record[2], Website: record[3], IRURL: record[4]}
		default:
			return nil, services.Wrap(services.ErrInvalidInput, "workflow", "parse_csv",
				fmt.Sprintf("line %d: expected 1 or 5 fields, got %d", line, len(record)), nil)
		}
		if sub.CompanyName == "" {
			return nil, services.Wrap(services.ErrInvalidInput, "workflow", "parse_csv",
				fmt.Sprintf("line %d: company name is required", line), nil)
		}
		sub.Website = withScheme(sub.Website)
		sub.IRURL = withScheme(sub.IRURL)
		out = append(out, sub)
	}
	if len(out) == 0 {
		return nil, services.Wrap(services.ErrInvalidInput, "workflow", "parse_csv", "no companies found", nil)
	}
	return out, nil
}

func headerIndex(record []string) map[string]int {
	index := make(map[string]int, len(record))
	for i, name := range record {
		index[strings.ToLower(name)] = i
	}
	if _, ok := index["company_name"]; !ok {
		return nil
	}
	return index
}

func column(record []string, header map[string]int, name string) string {
	i, ok := header[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func blank(record []string) bool {
	for _, field := range record {
		if field != "" {
			return false
		}
	}
	return true
}

func withScheme(raw string) string {
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	return "https://" + raw
}
