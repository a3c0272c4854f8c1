// Package report renders run statistics as markdown for the job summary and the
// pull request comment.
package report

import (
	"fmt"
	"strings"

	"github.com/Norgate-AV/cachestat/internal/stats"
)

const (
	// Title heads both the job summary section and the comment
	Title = "Compiler cache report"

	// maxMisses is the number of misses listed before collapsing the rest into one row
	maxMisses = 10

	// keyLength is the number of cache key characters shown in the misses table
	keyLength = 12

	attribution = "<sub>Reported by cachestat</sub>"
)

// RenderSummary renders the metrics table followed by a collapsed table of the slowest misses
func RenderSummary(s stats.RunStats, backend string, durationSeconds int64) string {
	var b strings.Builder

	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(&b, "| Hit rate | %s%% |\n", s.HitRate)
	fmt.Fprintf(&b, "| Local hits | %d |\n", s.LocalHits)
	fmt.Fprintf(&b, "| Remote hits | %d |\n", s.RemoteHits)
	fmt.Fprintf(&b, "| Misses | %d |\n", s.Misses)
	if s.Errors > 0 {
		fmt.Fprintf(&b, "| Errors | %d |\n", s.Errors)
	}
	fmt.Fprintf(&b, "| Total | %d |\n", s.Total)
	fmt.Fprintf(&b, "| Backend | %s |\n", backend)
	fmt.Fprintf(&b, "| Duration | %s |\n", FormatSeconds(durationSeconds))

	if len(s.TopMisses) > 0 {
		b.WriteString("\n")
		writeMisses(&b, s)
	}

	return b.String()
}

func writeMisses(b *strings.Builder, s stats.RunStats) {
	withKeys := s.HasKeys()
	columns := []string{"Unit", "Compile time", "Size"}
	if withKeys {
		columns = append(columns, "Cache key")
	}

	fmt.Fprintf(b, "<details>\n<summary>Slowest misses (%d)</summary>\n\n", len(s.TopMisses))
	writeRow(b, columns)
	writeRow(b, separators(len(columns)))

	shown := s.TopMisses
	if len(shown) > maxMisses {
		shown = shown[:maxMisses]
	}

	for _, m := range shown {
		row := []string{m.Name, FormatMs(m.ElapsedMillis), FormatBytes(m.SizeBytes)}
		if withKeys {
			key := ""
			if m.CacheKey != "" {
				key = "`" + truncateKey(strings.ReplaceAll(m.CacheKey, "`", "")) + "`"
			}
			row = append(row, key)
		}
		writeRow(b, row)
	}

	if rest := len(s.TopMisses) - len(shown); rest > 0 {
		row := make([]string, len(columns))
		row[0] = fmt.Sprintf("_%d more_", rest)
		writeRow(b, row)
	}

	b.WriteString("\n</details>\n")
}

// RenderDegraded renders the summary used when the run produced no cache events
func RenderDegraded(backend string, durationSeconds int64) string {
	var b strings.Builder

	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(&b, "| Backend | %s |\n", backend)
	fmt.Fprintf(&b, "| Duration | %s |\n", FormatSeconds(durationSeconds))

	return b.String()
}

// RenderComment renders the full comment body. The sticky marker is not included.
func RenderComment(s stats.RunStats, backend string, durationSeconds int64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s\n\n", Title)
	fmt.Fprintf(&b, "**`%s%%` hit rate** — `%d`/`%d` from cache, `%d` compiled\n\n", s.HitRate, s.Hits, s.Total, s.Misses)
	b.WriteString(RenderSummary(s, backend, durationSeconds))
	b.WriteString("\n")
	b.WriteString(attribution)
	b.WriteString("\n")

	return b.String()
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(escapeCell(c))
		if c != "" {
			b.WriteString(" ")
		}
		b.WriteString("|")
	}
	b.WriteString("\n")
}

func separators(n int) []string {
	cells := make([]string, n)
	for i := range cells {
		cells[i] = "---"
	}

	return cells
}

var cellReplacer = strings.NewReplacer(
	"|", "\\|",
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
)

// escapeCell keeps pipes and line breaks in unit names from breaking the table
func escapeCell(c string) string {
	return cellReplacer.Replace(c)
}
