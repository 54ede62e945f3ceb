// Package discovery implements the discover stage, which resolves the
// requested company into a docstore.Company with a website and an investor
// relations page.
//
// Submit hints win. Without a website hint the optional Recognizer (backed
// by the LLM) proposes one. Without an IR hint the stage tries the
// configured discovery.ir_paths under the website and keeps the first page
// whose text mentions an IR keyword. When no candidate matches, the website
// itself is used as the IR page so collection can still look for reports
// there.
package discovery
