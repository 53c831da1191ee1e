package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/riceball-k/textfsm-parse-to-csv/internal/logging"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/config"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/pathset"
)

// GlobalOptions holds the flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	LogLevel   string
	Verbose    bool
	Quiet      bool
}

// AddGlobalFlags registers the shared flags as persistent flags on cmd.
func AddGlobalFlags(cmd *cobra.Command, g *GlobalOptions) {
	cmd.PersistentFlags().StringVarP(&g.ConfigPath, "config", "c", "", "Config file (YAML, or TOML with a .toml extension)")
	cmd.PersistentFlags().StringVar(&g.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVarP(&g.Verbose, "verbose", "v", false, "Show per-artifact details and debug logging")
	cmd.PersistentFlags().BoolVarP(&g.Quiet, "quiet", "q", false, "Summary only, errors only in the log")
}

// loadConfig loads the config file, or the defaults when none was given.
func (g *GlobalOptions) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(ctx, g.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	return cfg, nil
}

// newLogger builds the diagnostic logger for a command.
func (g *GlobalOptions) newLogger(w io.Writer, cfg *config.Config) (*log.Logger, error) {
	return logging.New(w, logging.Options{
		Level:   cfg.LogLevel,
		Verbose: g.Verbose,
		Quiet:   g.Quiet,
	})
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// resolvePatterns expands patterns into a deduplicated file list in first-seen
// order: patterns in the order given, then glob matches as the walk finds them.
func resolvePatterns(patterns []string) ([]string, error) {
	set, err := pathset.New(patterns)
	if err != nil {
		return nil, err
	}
	return set.Resolve(), nil
}
