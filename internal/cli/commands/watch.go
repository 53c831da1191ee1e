package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/riceball-k/textfsm-parse-to-csv/internal/watch"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/batch"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/report"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/selector"
)

// WatchOptions holds command-line options for the watch command.
type WatchOptions struct {
	ParseOptions

	Debounce time.Duration
	Initial  bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(g *GlobalOptions) *cobra.Command {
	opts := &WatchOptions{ParseOptions: ParseOptions{GlobalOptions: g}}

	cmd := &cobra.Command{
		Use:   "watch <logfile>...",
		Short: "Re-parse log files whenever they change",
		Long: `Watch log files and run every template against each one that is
created or written, until interrupted.

Templates and log patterns must be given on the command line or in the config
file; the interactive chooser is not used. Each changed file is processed on
its own, one at a time. A run that fails is logged and watching continues.

Example:
  textfsm-parse watch -t 'templates/*.textfsm' -o out 'logs/**/*.log'
  textfsm-parse watch --initial -c parse.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args, opts)
		},
	}

	AddParseFlags(cmd, &opts.ParseOptions)
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "Quiet period before a changed file is processed")
	cmd.Flags().BoolVar(&opts.Initial, "initial", false, "Process every matching file once before watching")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string, opts *WatchOptions) error {
	ExitCode = 0
	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := opts.loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := opts.applyTo(cfg, args); err != nil {
		return err
	}
	if len(cfg.Templates) == 0 || len(cfg.Logs) == 0 {
		return errors.New("watch needs templates (-t) and log patterns")
	}

	logger, err := opts.newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}
	formatter, err := createFormatter(cfg.Report, opts.GlobalOptions)
	if err != nil {
		return err
	}
	webhooks, err := collectWebhooks(cfg, &opts.ParseOptions)
	if err != nil {
		return err
	}

	p, err := newPipeline(ctx, cfg, logger, selector.New(nil))
	if err != nil {
		return err
	}
	defer p.Close()

	w, err := watch.New(cfg.Logs, watch.WithDebounce(opts.Debounce), watch.WithLogger(logger))
	if err != nil {
		return err
	}

	process := func(logs []string) {
		result, err := p.run(ctx, batch.Request{Templates: cfg.Templates, Logs: logs})
		if err != nil {
			logger.Error("run failed", "logs", logs, "err", err)
			return
		}
		// Artifacts written beside the logs can match the log patterns.
		for _, a := range result.Artifacts {
			w.Ignore(a.Path)
		}
		rep := report.NewReport(result, cfg.Output.Format, cfg.Output.Dir)
		if err := formatter.Format(ctx, rep, cmd.OutOrStdout()); err != nil {
			logger.Error("formatting report failed", "err", err)
		}
		sendWebhooks(ctx, webhooks, rep, logger)
	}

	if opts.Initial {
		process(cfg.Logs)
	}

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	logger.Info("watching", "dirs", w.Dirs(), "debounce", opts.Debounce)
	for ev := range w.Events {
		if w.Ignored(ev.Path) {
			logger.Debug("skipping own artifact", "path", ev.Path)
			continue
		}
		logger.Debug("change detected", "path", ev.Path, "op", ev.Op)
		process([]string{ev.Path})
	}

	if err := <-done; err != nil {
		return fmt.Errorf("watching: %w", err)
	}
	logger.Info("watch stopped")
	return nil
}
