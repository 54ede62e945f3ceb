// Package searchindex keeps the full-text index of extracted chunks current.
// The index stage swaps a company's indexed rows for the chunks of its active
// documents; chat answers are retrieved from that index.
package searchindex
