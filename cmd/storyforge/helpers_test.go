package main

import (
	"bytes"
	"strings"
	"testing"

	"storyforge/internal/progress"
)

func TestRenderTableIncludesHeadersAndRows(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Title"},
		[][]string{{"story-1", "The Keeper's Map"}, {"story-2", "Second"}},
		[]columnAlignment{alignLeft, alignLeft},
	)
	for _, want := range []string{"ID", "Title", "story-1", "The Keeper's Map", "story-2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"A", "B", "C"},
		[][]string{{"only"}},
		nil,
	)
	if !strings.Contains(out, "only") {
		t.Fatalf("table output missing row value:\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate(short) = %q", got)
	}
	got := truncate("a very long title that keeps going", 12)
	if len(got) > 12 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate = %q, want <=12 chars ending in ...", got)
	}
}

func TestPrintEventFormatsAttempts(t *testing.T) {
	var buf bytes.Buffer
	printEvent(&buf, progress.Event{Stage: progress.StageEpisode, Message: "Writing episode 2..."})
	if got := buf.String(); got != "[Episode] Writing episode 2...\n" {
		t.Fatalf("plain event = %q", got)
	}

	buf.Reset()
	printEvent(&buf, progress.Event{Stage: progress.StageOutline, Message: "Retrying in 2 seconds...", Attempt: 1})
	if got := buf.String(); !strings.Contains(got, "(attempt 1)") {
		t.Fatalf("retry event = %q, want attempt suffix", got)
	}
}

func TestPrintRateUsage(t *testing.T) {
	var buf bytes.Buffer
	printRateUsage(&buf, 4, 10)
	if got := buf.String(); got != "API usage: 4/10 requests in the current window.\n" {
		t.Fatalf("rate usage line = %q", got)
	}
}
