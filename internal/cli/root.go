package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/admitgate/internal/gate"
)

var rootCmd = &cobra.Command{
	Use:   "admitgate",
	Short: "Pinned admission gate for CI",
	Long: "Extracts added-line facts from a git diff, submits them to a pinned remote\n" +
		"authority and fails unless the authority, under the expected key and for the\n" +
		"expected image, answers ALLOW. Running without a subcommand is the same as 'run'.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runGate,
}

func init() {
	bindRunFlags(rootCmd)
}

// Execute runs the root command. Gate failures have already printed their
// marker line; anything else is printed here. Every failure exits 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if gate.KindOf(err) == "" {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
