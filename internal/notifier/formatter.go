package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"CryptoPulse/internal/model"
)

const maxListedSkips = 10

// FormatRunReport formats one run for a Telegram message.
func FormatRunReport(rep *model.RunReport, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder

	icon := "✅"
	switch {
	case rep.State == model.StateFailed:
		icon = "❌"
	case rep.Partial():
		icon = "⚠️"
	}
	b.WriteString(fmt.Sprintf("%s <b>CryptoPulse refresh</b> | %s\n\n", icon, rep.StartedAt.In(loc).Format("2006-01-02 15:04 MST")))

	if rep.State == model.StateFailed {
		b.WriteString(fmt.Sprintf("Run failed: %s\n", html.EscapeString(rep.Err)))
		if rep.WorkbookWritten {
			b.WriteString("The workbook was updated; the exports after it failed.\n")
		} else {
			b.WriteString("The previous workbook was left unchanged.\n")
		}
	} else {
		b.WriteString(fmt.Sprintf("Market rows: %d\n", rep.SnapshotRows))
		b.WriteString(fmt.Sprintf("History rows: %d\n", rep.HistoryRows))
		b.WriteString(fmt.Sprintf("Sentiment rows: %d\n", rep.SentimentRows))
		b.WriteString(fmt.Sprintf("Portfolio prices: %d\n", rep.PriceRows))
		if !rep.GlobalOK {
			b.WriteString("Global metrics: unavailable\n")
		}
		b.WriteString(fmt.Sprintf("Destination: %s\n", html.EscapeString(rep.Destination)))
	}
	b.WriteString(fmt.Sprintf("Duration: %s\n", rep.Duration().Round(time.Second)))

	if n := len(rep.Skips); n > 0 {
		b.WriteString(fmt.Sprintf("\n<b>Skipped (%d):</b>\n", n))
		for i, s := range rep.Skips {
			if i == maxListedSkips {
				b.WriteString(fmt.Sprintf("  … and %d more\n", n-maxListedSkips))
				break
			}
			b.WriteString("  • " + html.EscapeString(s.String()) + "\n")
		}
	}
	return b.String()
}

// FormatRecentRuns formats a short run history, newest first, as Telegram
// HTML.
func FormatRecentRuns(runs []model.RunReport, loc *time.Location) string {
	return recentRuns(runs, loc, "📜 <b>Recent runs</b>\n\n")
}

// FormatRecentRunsText is FormatRecentRuns for a terminal.
func FormatRecentRunsText(runs []model.RunReport, loc *time.Location) string {
	return recentRuns(runs, loc, "Recent runs\n\n")
}

func recentRuns(runs []model.RunReport, loc *time.Location, title string) string {
	if len(runs) == 0 {
		return "No runs recorded yet.\n"
	}
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	b.WriteString(title)
	for _, r := range runs {
		b.WriteString(fmt.Sprintf("%s  %-7s  %d rows  %d skipped\n",
			r.StartedAt.In(loc).Format("01-02 15:04"), r.State, r.SnapshotRows+r.HistoryRows, len(r.Skips)))
	}
	return b.String()
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	return "Available commands:\n• /run - refresh the workbook now\n• /status - current state and last run\n• /history - recent runs"
}
