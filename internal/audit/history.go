package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Filter selects entries for History. Zero fields match everything.
type Filter struct {
	Head    string    // head ref, prefix match so short SHAs work
	Outcome string    // exact outcome
	From    time.Time // inclusive lower bound
	To      time.Time // inclusive upper bound
}

// Summary counts outcomes across the selected entries.
type Summary struct {
	Total          int    `json:"total"`
	AllowCount     int    `json:"allow_count"`
	DenyCount      int    `json:"deny_count"`
	PinFailCount   int    `json:"pin_fail_count"`
	ErrorCount     int    `json:"error_count"`
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp"`
}

// HistoryResult holds the selected entries in log order.
type HistoryResult struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// History reads the log and returns entries matching the filter. Lines that
// do not parse are skipped; use Verify to detect them.
func History(path string, filter Filter) (*HistoryResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	result := &HistoryResult{Entries: []Entry{}}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if !filter.matches(entry) {
			continue
		}
		result.Entries = append(result.Entries, entry)
		result.Summary.add(entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	return result, nil
}

func (f Filter) matches(e Entry) bool {
	if f.Head != "" && !strings.HasPrefix(e.Refs.Head, f.Head) {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}

	ts, err := time.Parse(TimestampFormat, e.Timestamp)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ts.After(f.To) {
		return false
	}
	return true
}

func (s *Summary) add(e Entry) {
	s.Total++

	switch {
	case e.Outcome == OutcomeAllow:
		s.AllowCount++
	case e.Outcome == OutcomeDenied:
		s.DenyCount++
	case strings.HasPrefix(e.Outcome, "pin_"):
		s.PinFailCount++
	default:
		s.ErrorCount++
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = e.Timestamp
	}
	s.LastTimestamp = e.Timestamp
}
