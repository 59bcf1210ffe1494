package textsplit

import (
	"strings"
	"testing"
)

func TestChunksShortTextIsSinglePiece(t *testing.T) {
	got := Chunks("The sea was calm that morning.")
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
}

func TestChunksEmptyInput(t *testing.T) {
	if got := Chunks("   \n  "); got != nil {
		t.Fatalf("expected no chunks, got %v", got)
	}
}

func TestChunksPrefersSentenceBoundary(t *testing.T) {
	first := strings.Repeat("a", 20) + ". "
	second := strings.Repeat("b", 20)
	got := ChunksWithLimit(first+second, 30)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(got), got)
	}
	if got[0] != strings.Repeat("a", 20)+"." {
		t.Fatalf("first chunk did not end at the sentence: %q", got[0])
	}
	if got[1] != second {
		t.Fatalf("unexpected second chunk %q", got[1])
	}
}

func TestChunksPrefersNewlineOverEarlierPeriod(t *testing.T) {
	text := "one. two\nthree four five six seven"
	got := ChunksWithLimit(text, 12)
	if got[0] != "one. two" {
		t.Fatalf("expected cut after the newline, got %q", got[0])
	}
}

func TestChunksFallsBackToLastSpace(t *testing.T) {
	text := "alpha beta gamma"
	got := ChunksWithLimit(text, 12)
	if got[0] != "alpha beta" {
		t.Fatalf("expected cut at last space, got %q", got[0])
	}
	if got[1] != "gamma" {
		t.Fatalf("unexpected remainder %q", got[1])
	}
}

func TestChunksHardCutWithoutAnyBoundary(t *testing.T) {
	text := strings.Repeat("x", 25)
	got := ChunksWithLimit(text, 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if got[0] != strings.Repeat("x", 10) || got[2] != strings.Repeat("x", 5) {
		t.Fatalf("unexpected hard cuts %v", got)
	}
}

func TestChunksRespectRuneLimitOnMultibyteText(t *testing.T) {
	text := strings.Repeat("م", 25)
	for _, chunk := range ChunksWithLimit(text, 10) {
		if n := len([]rune(chunk)); n > 10 {
			t.Fatalf("chunk exceeds rune limit: %d runes", n)
		}
	}
}

func TestChunksPreserveAllContentWords(t *testing.T) {
	var words []string
	for i := 0; i < 400; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words, " ") + ". " + strings.Join(words, " ")
	chunks := ChunksWithLimit(text, 500)
	rejoined := strings.Join(chunks, " ")
	if strings.Count(rejoined, "word") != 800 {
		t.Fatalf("content lost across chunks: %d words", strings.Count(rejoined, "word"))
	}
	for i, chunk := range chunks {
		if n := len([]rune(chunk)); n > 500 {
			t.Fatalf("chunk %d exceeds limit: %d runes", i, n)
		}
	}
}
