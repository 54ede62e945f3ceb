// Package textutil provides small text helpers shared by the stages and the
// insight features: token fingerprints with cosine similarity (used to keep
// evidence quotes diverse), rune-safe truncation and path token
// sanitization.
//
// Tokenization lowercases text, splits on anything that is not a letter or
// digit in any script, and drops tokens shorter than 3 runes.
package textutil
