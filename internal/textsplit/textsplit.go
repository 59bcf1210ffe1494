// Package textsplit breaks long narration text into chunks that fit the
// speech provider's per-request character limit, preferring sentence and
// line boundaries over mid-word cuts.
package textsplit

import "strings"

// MaxChunkLength is the per-request character budget of the speech API.
const MaxChunkLength = 4800

// Boundary preference, strongest first. The Arabic comma carries a trailing
// space just like its Latin counterparts.
var separators = []string{"\n", ". ", "، ", "? ", "! "}

// Chunks splits text into pieces of at most MaxChunkLength runes.
func Chunks(text string) []string {
	return ChunksWithLimit(text, MaxChunkLength)
}

// ChunksWithLimit splits text into pieces of at most limit runes. Each cut
// lands after the furthest separator inside the window, then after the last
// space, then hard at the limit. Chunks are trimmed and empty pieces are
// dropped, so rejoining is lossy only in whitespace.
func ChunksWithLimit(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxChunkLength
	}
	remaining := []rune(strings.TrimSpace(text))
	var chunks []string
	for len(remaining) > 0 {
		if len(remaining) <= limit {
			chunks = appendChunk(chunks, string(remaining))
			break
		}
		window := string(remaining[:limit])
		cut := separatorCut(window)
		if cut <= 0 {
			cut = lastSpaceCut(window)
		}
		if cut <= 0 {
			cut = limit
		}
		chunks = appendChunk(chunks, string(remaining[:cut]))
		remaining = trimLeadingSpace(remaining[cut:])
	}
	return chunks
}

// separatorCut returns the rune index just past the furthest separator in
// window, or 0 when none occurs.
func separatorCut(window string) int {
	best := 0
	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		end := len([]rune(window[:idx+len(sep)]))
		if end > best {
			best = end
		}
	}
	return best
}

func lastSpaceCut(window string) int {
	idx := strings.LastIndex(window, " ")
	if idx < 0 {
		return 0
	}
	return len([]rune(window[:idx]))
}

func appendChunk(chunks []string, chunk string) []string {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return chunks
	}
	return append(chunks, chunk)
}

func trimLeadingSpace(runes []rune) []rune {
	return []rune(strings.TrimSpace(string(runes)))
}
