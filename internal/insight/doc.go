// Package insight layers language-model features over stored scores and the
// search index: relevance refinement of evidence, grounded analyst reports
// and question answering with citations.
//
// Nothing here modifies stored results. When the model or the index is
// unavailable the methods fail with services.ErrUpstreamUnavailable while
// scores and evidence stay served by the store.
package insight
