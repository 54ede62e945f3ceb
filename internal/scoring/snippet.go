package scoring

import (
	"strings"
	"unicode/utf8"
)

// Snippet returns text[start:end] with up to window bytes of context on
// each side. Boundaries are moved inward to rune starts and whitespace runs
// are collapsed to single spaces, so the collapsed match text is always a
// substring of the result.
func Snippet(text string, start, end, window int) string {
	lo := max(0, start-window)
	for lo < start && !utf8.RuneStart(text[lo]) {
		lo++
	}
	hi := min(len(text), end+window)
	for hi > end && hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi--
	}
	return collapseSpace(text[lo:hi])
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
