package textutil

// CosineSimilarity returns 0 if either fingerprint is nil or empty.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// Diverse picks up to limit indexes of texts in order, skipping any text
// whose similarity to an already picked one reaches threshold. When fewer
// than limit texts are distinct enough, the skipped ones fill the remainder
// in order. A non-positive limit picks every text.
func Diverse(texts []string, limit int, threshold float64) []int {
	if limit <= 0 || limit > len(texts) {
		limit = len(texts)
	}
	picked := make([]int, 0, limit)
	var pickedPrints []*Fingerprint
	var skipped []int
	for i, text := range texts {
		if len(picked) == limit {
			break
		}
		fp := NewFingerprint(text)
		duplicate := false
		for _, other := range pickedPrints {
			if CosineSimilarity(fp, other) >= threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			skipped = append(skipped, i)
			continue
		}
		picked = append(picked, i)
		pickedPrints = append(pickedPrints, fp)
	}
	for _, i := range skipped {
		if len(picked) == limit {
			break
		}
		picked = append(picked, i)
	}
	return picked
}
