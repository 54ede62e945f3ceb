package scoring

import (
	"math"

	"dealradar/internal/catalog"
)

// Raw computes the capped, weighted hit sum for per-category hit counts.
func Raw(cat *catalog.Catalog, hits map[string]int) int {
	total := 0
	for _, sig := range cat.Signals {
		total += min(hits[sig.ID], cat.Policy.CapPerCategory) * sig.Weight
	}
	return total
}

// Normalize turns a raw sum into a display score: raw is divided by the
// normalization factor, rounded half away from zero, reduced by penalty and
// clamped to [0, DisplayMax].
func Normalize(policy catalog.Policy, raw, penalty int) int {
	score := int(math.Round(float64(raw)/float64(policy.Normalization))) - penalty
	return max(0, min(score, policy.DisplayMax))
}
