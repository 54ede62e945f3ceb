// Package scoring turns stored document text into explainable company
// scores.
//
// Engine.Scan evaluates every catalog matcher over every chunk of a company's
// active documents, records one Evidence per deduplicated match and applies
// the catalog policy:
//
//	raw   = sum over categories of min(hits, cap) * weight
//	score = clamp(round(raw / normalization) - penalty, 0, display_max)
//
// The same formula is applied per fiscal year for the trend. Scanning is a
// pure function of the stored text and the catalog; only the run id and
// timestamp differ between identical scans.
package scoring
