package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"storyforge/internal/progress"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func truncate(s string, limit int) string {
	if limit <= 3 || len(s) <= limit {
		return s
	}
	return strings.TrimSpace(s[:limit-3]) + "..."
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func printEvent(w io.Writer, event progress.Event) {
	if event.Attempt > 0 {
		fmt.Fprintf(w, "[%s] %s (attempt %d)\n", event.Stage.Label(), event.Message, event.Attempt)
		return
	}
	fmt.Fprintf(w, "[%s] %s\n", event.Stage.Label(), event.Message)
}

func printRateUsage(w io.Writer, current, budget int) {
	fmt.Fprintf(w, "API usage: %d/%d requests in the current window.\n", current, budget)
}

// streamEvents mirrors a session's progress stream onto w until cancelled.
// The returned function stops the stream and waits for the printer to drain.
func streamEvents(w io.Writer, reporter *progress.Reporter) func() {
	events, cancel := reporter.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range events {
			printEvent(w, event)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
