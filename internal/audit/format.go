package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a HistoryResult as a text table, one run per line.
func FormatTimeline(result *HistoryResult) string {
	if len(result.Entries) == 0 {
		return "No gate runs found.\n"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Gate runs | %s – %s UTC\n",
		formatDateTime(result.Summary.FirstTimestamp), formatDateTime(result.Summary.LastTimestamp))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		decision := e.Decision
		if decision == "" {
			decision = "-"
		}
		fmt.Fprintf(&b, "%-19s %-14s %-8s %-17s %5d facts  %s\n",
			formatDateTime(e.Timestamp),
			strings.ToUpper(e.Outcome),
			truncate(decision, 8),
			shortRange(e.Refs),
			e.Facts,
			e.RunID)
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))
	return b.String()
}

// FormatJSON renders a HistoryResult as indented JSON.
func FormatJSON(result *HistoryResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal history: %w", err)
	}
	return string(data), nil
}

func formatDateTime(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func shortRange(r Refs) string {
	return shortRef(r.Base) + ".." + shortRef(r.Head)
}

func shortRef(ref string) string {
	if len(ref) > 7 {
		return ref[:7]
	}
	return ref
}

func formatSummary(s Summary) string {
	parts := []string{fmt.Sprintf("%d runs", s.Total)}
	if s.AllowCount > 0 {
		parts = append(parts, fmt.Sprintf("%d allow", s.AllowCount))
	}
	if s.DenyCount > 0 {
		parts = append(parts, fmt.Sprintf("%d deny", s.DenyCount))
	}
	if s.PinFailCount > 0 {
		parts = append(parts, fmt.Sprintf("%d pin failure", s.PinFailCount))
	}
	if s.ErrorCount > 0 {
		parts = append(parts, fmt.Sprintf("%d error", s.ErrorCount))
	}
	return "Summary: " + strings.Join(parts, ", ") + "\n"
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
