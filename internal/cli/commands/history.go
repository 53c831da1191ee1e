package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/riceball-k/textfsm-parse-to-csv/internal/ledger"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/config"
)

// errNoLedger is returned by history when no ledger is configured. Runs are
// only recorded when parse is given a ledger, so there is nothing to list.
var errNoLedger = errors.New("no ledger configured: pass --ledger, set ledger in the config, or set " + config.EnvLedger)

// HistoryOptions holds command-line options for the history command.
type HistoryOptions struct {
	*GlobalOptions

	Ledger string
	Limit  int
	JSON   bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(g *GlobalOptions) *cobra.Command {
	opts := &HistoryOptions{GlobalOptions: g}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or the artifacts of one run",
		Long: `List runs recorded in the ledger, newest first. With a run ID, list the
artifacts that run wrote.

The ledger is taken from --ledger, then the config file or
TEXTFSM_PARSE_LEDGER. It must be the same file parse was given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "SQLite ledger file")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().BoolVarP(&opts.JSON, "json", "j", false, "Print JSON")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string, opts *HistoryOptions) error {
	ctx := contextOf(cmd)

	cfg, err := opts.loadConfig(ctx)
	if err != nil {
		return err
	}
	path := opts.Ledger
	if path == "" {
		path = cfg.Ledger
	}
	if path == "" {
		return errNoLedger
	}

	led, err := ledger.Open(ctx, path)
	if err != nil {
		return err
	}
	defer led.Close()

	out := cmd.OutOrStdout()

	if len(args) == 1 {
		artifacts, err := led.Artifacts(ctx, args[0])
		if err != nil {
			return err
		}
		if opts.JSON {
			return writeJSON(out, artifacts)
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "WRITTEN\tRECORDS\tPATH")
		for _, a := range artifacts {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", a.WrittenAt.Local().Format(time.DateTime), a.Records, a.Path)
		}
		return tw.Flush()
	}

	runs, err := led.Runs(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if opts.JSON {
		return writeJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATE\tLOGS\tTEMPLATES\tARTIFACTS\tFAILURES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.State,
			r.LogFiles, r.Templates, r.Artifacts, r.Failures)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
