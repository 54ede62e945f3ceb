// Package testsupport offers shared fixtures for package tests: temp-dir
// configs, opened stores, seeded documents and stub binaries.
package testsupport
