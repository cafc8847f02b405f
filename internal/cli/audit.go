package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/admitgate/internal/audit"
)

var (
	tailLines int

	historyHead    string
	historyOutcome string
	historyFrom    string
	historyTo      string
	historyFormat  string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditHistoryCmd)
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")
	auditHistoryCmd.Flags().StringVar(&historyHead, "head", "", "Only runs whose head commit starts with this")
	auditHistoryCmd.Flags().StringVar(&historyOutcome, "outcome", "", "Only runs with this outcome (allow, denied, pin_image, ...)")
	auditHistoryCmd.Flags().StringVar(&historyFrom, "from", "", "Start time filter (RFC3339)")
	auditHistoryCmd.Flags().StringVar(&historyTo, "to", "", "End time filter (RFC3339)")
	auditHistoryCmd.Flags().StringVarP(&historyFormat, "format", "f", "text", "Output format (text|json)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and inspecting the hash-chained log of gate runs.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Verify hash chain integrity of an audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail <path>",
	Short: "Show recent audit log entries",
	Long:  "Reads the last N entries from the JSONL audit log and pretty-prints them.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditTail,
}

var auditHistoryCmd = &cobra.Command{
	Use:   "history <path>",
	Short: "Summarize gate runs from the audit log",
	Long:  "Reads the audit log, filters by head commit, outcome and time range,\nand renders a run timeline with an outcome summary.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditHistory,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(args[0])
	if result.Valid {
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", result.Lines)
		return nil
	}
	return fmt.Errorf("FAILED at line %d: %s", result.ErrorLine, result.Error)
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	// Keep only the last N lines in a ring.
	ring := make([]string, 0, max(tailLines, 0))
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if tailLines <= 0 {
			continue
		}
		if len(ring) == tailLines {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, line := range ring {
		var entry audit.Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			fmt.Fprintln(out, line)
			continue
		}
		pretty, _ := json.MarshalIndent(entry, "", "  ")
		fmt.Fprintln(out, string(pretty))
	}

	return nil
}

func runAuditHistory(cmd *cobra.Command, args []string) error {
	filter := audit.Filter{Head: historyHead, Outcome: historyOutcome}

	if historyFrom != "" {
		from, err := time.Parse(time.RFC3339, historyFrom)
		if err != nil {
			return fmt.Errorf("invalid --from time %q: %w", historyFrom, err)
		}
		filter.From = from
	}

	if historyTo != "" {
		to, err := time.Parse(time.RFC3339, historyTo)
		if err != nil {
			return fmt.Errorf("invalid --to time %q: %w", historyTo, err)
		}
		filter.To = to
	}

	result, err := audit.History(args[0], filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch historyFormat {
	case "json":
		s, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s)
	default:
		fmt.Fprint(out, audit.FormatTimeline(result))
	}

	return nil
}
