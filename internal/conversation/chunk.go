// internal/conversation/chunk.go

package conversation

import "strings"

// ChunkLimit is the maximum number of characters shown per page.
const ChunkLimit = 750

// Chunk splits text into pieces of at most limit runes. Cuts prefer a
// paragraph break, then a line break, then a space, as long as the cut
// keeps at least half of the window; otherwise the text is hard cut.
// Invalid UTF-8 bytes are replaced with U+FFFD, one per invalid run.
// The result always has at least one element.
func Chunk(text string, limit int) []string {
	if limit <= 0 {
		limit = ChunkLimit
	}

	runes := []rune(strings.TrimSpace(strings.ToValidUTF8(text, "\uFFFD")))
	if len(runes) <= limit {
		return []string{string(runes)}
	}

	var chunks []string
	for len(runes) > limit {
		cut := cutPoint(runes[:limit])
		piece := strings.TrimRight(string(runes[:cut]), " \t\r\n")
		if piece != "" {
			chunks = append(chunks, piece)
		}
		runes = []rune(strings.TrimLeft(string(runes[cut:]), " \t\r\n"))
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func cutPoint(window []rune) int {
	min := len(window) / 2
	s := string(window)
	for _, sep := range []string{"\n\n", "\n", " "} {
		idx := strings.LastIndex(s, sep)
		if idx < 0 {
			continue
		}
		// idx is a byte offset; convert back to runes.
		at := len([]rune(s[:idx])) + len([]rune(sep))
		if at > min {
			return at
		}
	}
	return len(window)
}
