// Package catalog defines the versioned signal catalog: the categories the
// scoring engine searches for, their weights, the scoring policy constants and
// the suppressor terms that lower a company's score.
//
// A catalog is loaded once at startup from YAML (the embedded default or a
// file named by paths.catalog_path), validated, and never mutated afterwards.
package catalog
