package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// MatchKind selects how a matcher pattern is interpreted.
type MatchKind string

const (
	MatchSubstring MatchKind = "substring"
	MatchRegex     MatchKind = "regex"
)

// Matcher finds occurrences of one keyword or pattern. Matching is always
// case-insensitive and reports byte offsets into the original text.
type Matcher struct {
	Pattern string
	Kind    MatchKind
	re      *regexp.Regexp
}

// Match is one occurrence found by a Matcher.
type Match struct {
	Start int
	End   int
}

// FindAll returns every non-overlapping occurrence in text, at most limit
// when limit is positive.
func (m Matcher) FindAll(text string, limit int) []Match {
	if m.re == nil {
		return nil
	}
	n := -1
	if limit > 0 {
		n = limit
	}
	locs := m.re.FindAllStringIndex(text, n)
	out := make([]Match, 0, len(locs))
	for _, loc := range locs {
		if loc[1] <= loc[0] {
			continue
		}
		out = append(out, Match{Start: loc[0], End: loc[1]})
	}
	return out
}

// Contains reports whether text has at least one occurrence.
func (m Matcher) Contains(text string) bool {
	return m.re != nil && m.re.MatchString(text)
}

// Signal is one category of distress or opportunity indicator.
type Signal struct {
	ID       string
	Label    string
	Weight   int
	Matchers []Matcher
}

// Policy holds the scoring constants applied by the scoring engine.
type Policy struct {
	// CapPerCategory bounds how many hits of one category count toward the
	// raw score.
	CapPerCategory int
	// Normalization divides the raw weighted sum before rounding.
	Normalization int
	// DisplayMax is the upper bound of the final score. The lower bound is 0.
	DisplayMax int
	// MaxHitsPerKeyword bounds occurrences of one matcher per document;
	// 0 means unlimited.
	MaxHitsPerKeyword int
}

// Suppressors lists terms that indicate internal-only services. Their
// presence anywhere in a company's text subtracts Penalty display units once.
type Suppressors struct {
	Penalty  int
	Matchers []Matcher
}

// Catalog is an immutable, validated signal catalog.
type Catalog struct {
	Version     string
	Policy      Policy
	Signals     []Signal
	Suppressors Suppressors
	byID        map[string]int
}

// Signal returns the definition for id.
func (c *Catalog) Signal(id string) (Signal, bool) {
	if c == nil {
		return Signal{}, false
	}
	idx, ok := c.byID[id]
	if !ok {
		return Signal{}, false
	}
	return c.Signals[idx], true
}

// IDs returns category ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Signals))
	for _, s := range c.Signals {
		ids = append(ids, s.ID)
	}
	return ids
}

// TotalWeight is the sum of all category weights.
func (c *Catalog) TotalWeight() int {
	total := 0
	for _, s := range c.Signals {
		total += s.Weight
	}
	return total
}

type fileFormat struct {
	Version string `yaml:"version"`
	Policy  struct {
		CapPerCategory    int `yaml:"cap_per_category"`
		Normalization     int `yaml:"normalization"`
		DisplayMax        int `yaml:"display_max"`
		MaxHitsPerKeyword int `yaml:"max_hits_per_keyword"`
	} `yaml:"policy"`
	Suppressors struct {
		Penalty  int      `yaml:"penalty"`
		Keywords []string `yaml:"keywords"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"suppressors"`
	Signals []struct {
		ID       string   `yaml:"id"`
		Label    string   `yaml:"label"`
		Weight   int      `yaml:"weight"`
		Keywords []string `yaml:"keywords"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"signals"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path. An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var raw fileFormat
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	cat := &Catalog{
		Version: strings.TrimSpace(raw.Version),
		Policy: Policy{
			CapPerCategory:    raw.Policy.CapPerCategory,
			Normalization:     raw.Policy.Normalization,
			DisplayMax:        raw.Policy.DisplayMax,
			MaxHitsPerKeyword: raw.Policy.MaxHitsPerKeyword,
		},
		Suppressors: Suppressors{Penalty: raw.Suppressors.Penalty},
		byID:        make(map[string]int, len(raw.Signals)),
	}

	var err error
	if cat.Suppressors.Matchers, err = compileMatchers(raw.Suppressors.Keywords, raw.Suppressors.Patterns); err != nil {
		return nil, fmt.Errorf("suppressors: %w", err)
	}
	for _, entry := range raw.Signals {
		sig := Signal{
			ID:     strings.TrimSpace(entry.ID),
			Label:  strings.TrimSpace(entry.Label),
			Weight: entry.Weight,
		}
		if sig.Matchers, err = compileMatchers(entry.Keywords, entry.Patterns); err != nil {
			return nil, fmt.Errorf("signal %q: %w", sig.ID, err)
		}
		if sig.Label == "" {
			sig.Label = sig.ID
		}
		cat.Signals = append(cat.Signals, sig)
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	for i, sig := range cat.Signals {
		cat.byID[sig.ID] = i
	}
	return cat, nil
}

// Validate checks the invariants every catalog must satisfy.
func (c *Catalog) Validate() error {
	if c.Version == "" {
		return errors.New("catalog version is required")
	}
	if c.Policy.CapPerCategory <= 0 {
		return errors.New("policy.cap_per_category must be positive")
	}
	if c.Policy.Normalization <= 0 {
		return errors.New("policy.normalization must be positive")
	}
	if c.Policy.DisplayMax <= 0 {
		return errors.New("policy.display_max must be positive")
	}
	if c.Policy.MaxHitsPerKeyword < 0 {
		return errors.New("policy.max_hits_per_keyword must not be negative")
	}
	if c.Suppressors.Penalty < 0 {
		return errors.New("suppressors.penalty must not be negative")
	}
	if len(c.Signals) == 0 {
		return errors.New("catalog defines no signals")
	}
	seen := make(map[string]struct{}, len(c.Signals))
	for _, sig := range c.Signals {
		if sig.ID == "" {
			return errors.New("signal id is required")
		}
		if _, dup := seen[sig.ID]; dup {
			return fmt.Errorf("duplicate signal id %q", sig.ID)
		}
		seen[sig.ID] = struct{}{}
		if sig.Weight <= 0 {
			return fmt.Errorf("signal %q: weight must be positive", sig.ID)
		}
		if len(sig.Matchers) == 0 {
			return fmt.Errorf("signal %q: at least one keyword or pattern is required", sig.ID)
		}
	}
	return nil
}

func compileMatchers(keywords, patterns []string) ([]Matcher, error) {
	out := make([]Matcher, 0, len(keywords)+len(patterns))
	seen := make(map[string]struct{})
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := "s:" + strings.ToLower(kw)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Matcher{
			Pattern: kw,
			Kind:    MatchSubstring,
			re:      regexp.MustCompile(`(?i)` + regexp.QuoteMeta(kw)),
		})
	}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		if re.MatchString("") {
			return nil, fmt.Errorf("pattern %q matches the empty string", p)
		}
		key := "r:" + p
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Matcher{Pattern: p, Kind: MatchRegex, re: re})
	}
	return out, nil
}
