package extract

import (
	"unicode"
	"unicode/utf8"

	"dealradar/internal/docstore"
)

// Chunker splits text into overlapping windows measured in bytes.
type Chunker struct {
	Size     int
	Overlap  int
	MinChars int
}

// Split cuts text into windows of at most Size bytes that start Size-Overlap
// bytes apart. Window edges are moved back to rune boundaries. Windows with
// fewer than MinChars non-space runes are dropped; the offsets of later
// chunks still refer to the full text.
func (c Chunker) Split(documentID, text string) []docstore.TextChunk {
	size := c.Size
	if size <= 0 {
		size = 1000
	}
	step := size - c.Overlap
	if step <= 0 {
		step = size
	}

	var chunks []docstore.TextChunk
	for start := 0; start < len(text); {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			end = runeStart(text, end, start)
		}
		content := text[start:end]
		if nonSpace(content) >= c.MinChars {
			chunks = append(chunks, docstore.TextChunk{
				DocumentID: documentID,
				Position:   len(chunks),
				Offset:     start,
				Content:    content,
			})
		}
		if end == len(text) {
			break
		}
		next := runeStart(text, start+step, start)
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// runeStart moves i back to the start of the rune containing it. When that
// would not move past floor it moves forward instead, so windows always
// make progress.
func runeStart(text string, i, floor int) int {
	if i >= len(text) {
		return len(text)
	}
	j := i
	for j > floor && !utf8.RuneStart(text[j]) {
		j--
	}
	if j > floor {
		return j
	}
	for i < len(text) && !utf8.RuneStart(text[i]) {
		i++
	}
	return i
}

func nonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
