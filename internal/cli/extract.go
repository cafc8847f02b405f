package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ppiankov/admitgate/internal/facts"
)

var extractFormat string

func init() {
	rootCmd.AddCommand(extractCmd)
	bindSourceFlags(extractCmd)
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "text", "Output format (text|json)")
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Print the facts the gate would submit",
	Long: "Extracts added-line facts from the diff between --base and --head (or from\n" +
		"--diff-file) and prints them. Makes no network calls.",
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if flagDiffFile == "" {
		if err := cfg.ValidateRefs(); err != nil {
			return err
		}
	}

	diff, err := diffSource(cmd, cfg).Diff(cmd.Context(), cfg.BaseRef, cfg.HeadRef)
	if err != nil {
		return err
	}

	return writeFacts(cmd.OutOrStdout(), facts.Extract(diff), extractFormat)
}

func writeFacts(w io.Writer, list []facts.Fact, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case "text":
		for _, f := range list {
			if _, err := fmt.Fprintf(w, "%s:%d: %s\n", f.File, f.Line, f.Added); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "%d facts\n", len(list))
		return err
	default:
		return fmt.Errorf("unknown format %q (want text or json)", format)
	}
}
