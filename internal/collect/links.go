package collect

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"dealradar/internal/docstore"
)

var yearPattern = regexp.MustCompile(`20[1-2][0-9]`)

var annualKeywords = []string{
	"annual report", "jahresbericht", "universal registration document",
	"integrated report", "geschäftsbericht", "geschaeftsbericht",
	"full year", "form 20-f", "10-k", "annual review", "annual results",
	"fy", "urd",
}

var partialKeywords = []string{
	"half year", "half-year", "q1", "q2", "q3", "q4", "quarterly",
	"interim", "halbjahr", "hyfr", "semestriel", "h1", "h2",
	"us gaap", "us_gaap",
}

// GuessYear returns the newest four-digit year between 2010 and 2029 found
// in text, or docstore.YearUnknown.
func GuessYear(text string) string {
	best := ""
	for _, match := range yearPattern.FindAllString(text, -1) {
		if match > best {
			best = match
		}
	}
	if best == "" {
		return docstore.YearUnknown
	}
	return best
}

// IsPDFURL reports whether the URL path ends in .pdf, ignoring the query.
func IsPDFURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(parsed.Path), ".pdf")
}

type candidate struct {
	link   docstore.Link
	strong bool
	order  int
}

// describe joins link text and the unescaped URL for keyword matching.
func describe(text, link string) string {
	if unescaped, err := url.PathUnescape(link); err == nil {
		link = unescaped
	}
	return strings.ToLower(text + " " + link)
}

// yearSource drops the host so ports and domains never read as years.
func yearSource(text, link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return text
	}
	path := parsed.Path
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return text + " " + path
}

func containsAny(haystack string, keywords []string) bool {
	for _, keyword := range keywords {
		if keyword = strings.ToLower(strings.TrimSpace(keyword)); keyword != "" && strings.Contains(haystack, keyword) {
			return true
		}
	}
	return false
}

// rank orders candidates annual first, then newest year (unknown last),
// then explicit annual wording, then discovery order.
func rank(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.link.Annual != b.link.Annual {
			return a.link.Annual
		}
		if a.link.Year != b.link.Year {
			if a.link.Year == docstore.YearUnknown {
				return false
			}
			if b.link.Year == docstore.YearUnknown {
				return true
			}
			return a.link.Year > b.link.Year
		}
		if a.strong != b.strong {
			return a.strong
		}
		return a.order < b.order
	})
}
