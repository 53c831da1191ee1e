package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/riceball-k/textfsm-parse-to-csv/internal/chooser"
	"github.com/riceball-k/textfsm-parse-to-csv/internal/ledger"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/batch"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/config"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/extract"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/output"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/report"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/selector"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/webhook"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// ParseOptions holds command-line options for the root parse command.
type ParseOptions struct {
	*GlobalOptions

	Templates       []string
	OutputDir       string
	JSON            bool
	OnTemplateError string
	Encoding        string
	Report          string
	Ledger          string
	ChooserDir      string

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string

	// Chooser replaces the interactive file chooser. Nil uses the terminal UI.
	Chooser selector.Chooser
}

// AddParseFlags registers the parse flags on cmd.
func AddParseFlags(cmd *cobra.Command, opts *ParseOptions) {
	cmd.Flags().StringArrayVarP(&opts.Templates, "template", "t", nil, "Template file or glob pattern (can be repeated)")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "Existing directory for output files (default: beside each log file)")
	cmd.Flags().BoolVarP(&opts.JSON, "json", "j", false, "Write JSON instead of CSV")
	cmd.Flags().StringVar(&opts.OnTemplateError, "on-template-error", "", "What a broken template does to the run (abort|skip)")
	cmd.Flags().StringVar(&opts.Encoding, "encoding", "", "Log file encoding (e.g. shift_jis)")
	cmd.Flags().StringVar(&opts.Report, "report", "", "Run summary format (text|json)")
	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "SQLite file to record runs in")
	cmd.Flags().StringVar(&opts.ChooserDir, "chooser-dir", "", "Directory the interactive chooser lists (default: working directory)")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", string(webhook.TriggerOnFailures), "When to fire webhook (on_failures|always|never)")
}

// RunParse runs every template against every log file.
func RunParse(cmd *cobra.Command, args []string, opts *ParseOptions) error {
	ExitCode = 0
	ctx := contextOf(cmd)

	cfg, err := opts.loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := opts.applyTo(cfg, args); err != nil {
		return err
	}

	logger, err := opts.newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}

	formatter, err := createFormatter(cfg.Report, opts.GlobalOptions)
	if err != nil {
		return err
	}

	webhooks, err := collectWebhooks(cfg, opts)
	if err != nil {
		return err
	}

	var ch selector.Chooser = newChooser(cmd, cfg.Chooser)
	if opts.Chooser != nil {
		ch = opts.Chooser
	}
	sel := selector.New(ch, cfg.Chooser.SelectorOptions()...)

	p, err := newPipeline(ctx, cfg, logger, sel)
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.run(ctx, batch.Request{Templates: cfg.Templates, Logs: cfg.Logs})
	if err != nil {
		return err
	}
	// Cancelled selection exits silently.
	if result.State == batch.StateAborted {
		return nil
	}

	rep := report.NewReport(result, cfg.Output.Format, cfg.Output.Dir)
	if err := formatter.Format(ctx, rep, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting report: %w", err)
	}

	// Send webhooks (errors logged but don't fail the run)
	sendWebhooks(ctx, webhooks, rep, logger)

	if rep.HasFailures() {
		ExitCode = 1
	}

	return nil
}

// applyTo overrides cfg with the flags that were set and revalidates it.
func (o *ParseOptions) applyTo(cfg *config.Config, logs []string) error {
	if len(o.Templates) > 0 {
		cfg.Templates = o.Templates
	}
	if len(logs) > 0 {
		cfg.Logs = logs
	}
	if o.OutputDir != "" {
		cfg.Output.Dir = o.OutputDir
	}
	if o.JSON {
		cfg.Output.Format = "json"
	}
	if o.OnTemplateError != "" {
		cfg.OnTemplateError = o.OnTemplateError
	}
	if o.Encoding != "" {
		cfg.Encoding = o.Encoding
	}
	if o.Report != "" {
		cfg.Report = o.Report
	}
	if o.Ledger != "" {
		cfg.Ledger = o.Ledger
	}
	if o.ChooserDir != "" {
		cfg.Chooser.Dir = o.ChooserDir
	}
	return config.Validate(cfg)
}

// newChooser builds the terminal chooser on the command's streams. The picker
// draws on stderr so stdout carries only the run summary.
func newChooser(cmd *cobra.Command, cc config.ChooserConfig) *chooser.Chooser {
	opts := []chooser.Option{chooser.WithIO(cmd.InOrStdin(), cmd.ErrOrStderr())}
	if cc.Dir != "" {
		opts = append(opts, chooser.WithDir(cc.Dir))
	}
	if cc.AltScreen {
		opts = append(opts, chooser.WithAltScreen())
	}
	return chooser.New(opts...)
}

func createFormatter(name string, g *GlobalOptions) (report.Formatter, error) {
	return report.NewFormatter(name, report.FormatOptions{
		Verbose: g.Verbose,
		Quiet:   g.Quiet,
	})
}

// pipeline holds what a run needs so that repeated runs (watch) share one
// template cache and one ledger connection.
type pipeline struct {
	cfg       *config.Config
	logger    *log.Logger
	selector  batch.Selector
	extractor *extract.Extractor
	writer    *output.Writer
	policy    batch.TemplatePolicy
	ledger    *ledger.Ledger
}

func newPipeline(ctx context.Context, cfg *config.Config, logger *log.Logger, sel batch.Selector) (*pipeline, error) {
	ext, err := extract.New(extract.WithEncoding(cfg.Encoding))
	if err != nil {
		return nil, err
	}
	enc, err := output.NewEncoder(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	policy, err := batch.ParseTemplatePolicy(cfg.OnTemplateError)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		cfg:       cfg,
		logger:    logger,
		selector:  sel,
		extractor: ext,
		writer:    output.NewWriter(cfg.Output.Dir, enc),
		policy:    policy,
	}

	if cfg.Ledger != "" {
		led, err := ledger.Open(ctx, cfg.Ledger)
		if err != nil {
			return nil, err
		}
		p.ledger = led
		logger.Debug("ledger opened", "path", cfg.Ledger)
	}

	return p, nil
}

// run executes one batch run, recording it in the ledger when one is open.
// Ledger failures are logged and never fail the run.
func (p *pipeline) run(ctx context.Context, req batch.Request) (*batch.Result, error) {
	id := uuid.NewString()
	opts := []batch.Option{
		batch.WithRunID(id),
		batch.WithTemplatePolicy(p.policy),
		batch.WithLogger(p.logger),
	}

	recording := false
	if p.ledger != nil {
		err := p.ledger.BeginRun(ctx, ledger.Run{
			ID:        id,
			StartedAt: time.Now(),
			State:     string(batch.StateResolving),
			Format:    p.cfg.Output.Format,
			OutputDir: p.cfg.Output.Dir,
		})
		if err != nil {
			p.logger.Warn("ledger unavailable for this run", "err", err)
		} else {
			recording = true
			opts = append(opts, batch.WithRecorder(p.ledger))
		}
	}

	runner := batch.NewRunner(p.selector, p.extractor, p.writer, opts...)
	result, err := runner.Run(ctx, req)

	if recording {
		if ferr := p.ledger.FinishRun(ctx, result); ferr != nil {
			p.logger.Warn("recording run result failed", "run", id, "err", ferr)
		}
	}
	return result, err
}

func (p *pipeline) Close() error {
	if p.ledger == nil {
		return nil
	}
	return p.ledger.Close()
}

// sendWebhooks sends the report to every webhook whose trigger matches.
// Errors are logged but don't fail the run.
func sendWebhooks(ctx context.Context, webhooks []config.WebhookConfig, rep *report.Report, logger *log.Logger) {
	if len(webhooks) == 0 {
		return
	}

	client := webhook.NewClient()

	for _, wh := range webhooks {
		if !wh.Trigger.ShouldSend(rep) {
			continue
		}

		resp := client.Send(ctx, rep, webhook.SendOptions{
			URL:     wh.URL,
			Token:   wh.Token,
			Timeout: wh.Timeout,
		})

		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		if resp.Success() {
			logger.Info("webhook sent", "name", name, "status", resp.StatusCode, "duration", resp.Duration)
		} else {
			logger.Warn("webhook failed", "name", name, "err", resp.Error)
		}
	}
}

// collectWebhooks merges config file webhooks with the CLI webhook.
func collectWebhooks(cfg *config.Config, opts *ParseOptions) ([]config.WebhookConfig, error) {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger, err := webhook.ParseTrigger(opts.WebhookTrigger)
		if err != nil {
			return nil, fmt.Errorf("--webhook-trigger: %w", err)
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks, nil
}
