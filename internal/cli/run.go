package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/admitgate/internal/alert"
	"github.com/ppiankov/admitgate/internal/audit"
	"github.com/ppiankov/admitgate/internal/authority"
	"github.com/ppiankov/admitgate/internal/commitstatus"
	"github.com/ppiankov/admitgate/internal/config"
	"github.com/ppiankov/admitgate/internal/facts"
	"github.com/ppiankov/admitgate/internal/gate"
)

// notifyTimeout bounds alert and commit status delivery after a verdict.
const notifyTimeout = 30 * time.Second

var (
	flagConfig       string
	flagEnvFile      string
	flagAuthority    string
	flagPubkeySHA256 string
	flagImageDigest  string
	flagBase         string
	flagHead         string
	flagRepo         string
	flagDiffFile     string
	flagAuditLog     string
	flagTimeout      time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)
	bindRunFlags(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the admission gate",
	Long: "Pins the authority key, submits the diff facts, pins the image digest in the\n" +
		"response and requires decision ALLOW. Exits 0 only on L5_ALLOW_OK.",
	Args: cobra.NoArgs,
	RunE: runGate,
}

// bindSourceFlags adds the flags that pick the diff to inspect.
func bindSourceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&flagConfig, "config", "", "YAML config file (default $ADMITGATE_CONFIG)")
	f.StringVar(&flagEnvFile, "env-file", "", "dotenv file to load (default ./.env when present)")
	f.StringVar(&flagBase, "base", "", "base commit (default $BASE_SHA)")
	f.StringVar(&flagHead, "head", "", "head commit (default $HEAD_SHA)")
	f.StringVar(&flagRepo, "repo", "", "git working tree (default current directory)")
	f.StringVar(&flagDiffFile, "diff-file", "", "read a unified diff from this file instead of git ('-' for stdin)")
}

func bindRunFlags(cmd *cobra.Command) {
	bindSourceFlags(cmd)
	f := cmd.Flags()
	f.StringVar(&flagAuthority, "authority", "", "authority base URL (default $L5_AUTH_URL)")
	f.StringVar(&flagPubkeySHA256, "pubkey-sha256", "", "pinned authority key fingerprint (default $L5_PUBKEY_SHA256)")
	f.StringVar(&flagImageDigest, "image-digest", "", "pinned authority image digest (default $L5_PIN_IMAGE_DIGEST)")
	f.StringVar(&flagAuditLog, "audit-log", "", "append the verdict to this hash-chained log (default $ADMITGATE_AUDIT_LOG)")
	f.DurationVar(&flagTimeout, "timeout", 0, "per-request timeout (default 25s)")
}

func loadConfig() (config.Config, error) {
	return config.Load(config.LoadOptions{
		ConfigPath: flagConfig,
		EnvFile:    flagEnvFile,
		Overrides: config.Overrides{
			AuthorityURL: flagAuthority,
			PubkeySHA256: flagPubkeySHA256,
			ImageDigest:  flagImageDigest,
			BaseRef:      flagBase,
			HeadRef:      flagHead,
			RepoDir:      flagRepo,
			AuditLog:     flagAuditLog,
			Timeout:      flagTimeout,
		},
	})
}

func diffSource(cmd *cobra.Command, cfg config.Config) facts.Source {
	if flagDiffFile != "" {
		return facts.FileSource{Path: flagDiffFile, Stdin: cmd.InOrStdin()}
	}
	return facts.GitSource{Dir: cfg.RepoDir}
}

func runGate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		ge := &gate.Error{Kind: gate.KindConfig, Msg: "load configuration", Err: err}
		fmt.Fprintln(out, ge.Line())
		return ge
	}

	client := authority.New(cfg.AuthorityURL, authority.WithTimeout(cfg.Timeout))
	g := gate.New(cfg, client, diffSource(cmd, cfg), out)

	return execute(ctx, g, cfg, out, cmd.ErrOrStderr())
}

// execute runs one gate and records its verdict. The audit record is part
// of the verdict: failing to write it fails the run. Alerts and commit
// statuses are best-effort and only warn.
func execute(ctx context.Context, g *gate.Gate, cfg config.Config, out, errOut io.Writer) error {
	runID := audit.NewRunID()
	verdict, runErr := g.Run(ctx)
	if runErr != nil {
		printFailure(out, runErr)
	}

	rec := newRecord(runID, cfg, verdict, runErr)

	if cfg.AuditLog != "" {
		if err := audit.Append(cfg.AuditLog, rec.auditEntry()); err != nil {
			ge := &gate.Error{Kind: gate.KindAudit, Msg: "append " + cfg.AuditLog, Err: err}
			fmt.Fprintln(out, ge.Line())
			if runErr == nil {
				runErr = ge
			}
		}
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	notify(notifyCtx, cfg, rec, errOut)

	return runErr
}

func printFailure(w io.Writer, err error) {
	var ge *gate.Error
	if errors.As(err, &ge) {
		fmt.Fprintln(w, ge.Line())
		return
	}
	fmt.Fprintf(w, "L5_FAILED %v\n", err)
}

func notify(ctx context.Context, cfg config.Config, rec record, errOut io.Writer) {
	if d := alert.NewDispatcher(cfg.Alerts); d != nil {
		if err := d.Dispatch(ctx, rec.alertEvent()); err != nil {
			fmt.Fprintf(errOut, "warning: alert delivery: %v\n", err)
		}
	}

	if !cfg.CommitStatusEnabled() || rec.outcome == string(gate.KindConfig) {
		return
	}
	client, err := commitstatus.New(cfg.GitHub.Token, cfg.GitHub.Repository, cfg.GitHub.Context, cfg.GitHub.APIURL)
	if err != nil {
		fmt.Fprintf(errOut, "warning: commit status: %v\n", err)
		return
	}
	status := commitstatus.Status{
		SHA:         cfg.HeadRef,
		State:       commitstatus.StateFor(rec.outcome),
		Description: rec.description(),
	}
	if err := client.Post(ctx, status); err != nil {
		fmt.Fprintf(errOut, "warning: commit status: %v\n", err)
	}
}
