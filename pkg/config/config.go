package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/yaml.v3"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/batch"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/output"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/report"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/selector"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/webhook"
)

// Load reads and validates a configuration file. Files ending in .toml are
// decoded as TOML, everything else as YAML.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err = toml.Decode(string(data), cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, or returns the validated defaults with
// environment overrides applied when path is empty.
func LoadOrDefault(ctx context.Context, path string) (*Config, error) {
	if path != "" {
		return Load(ctx, path)
	}

	cfg := DefaultConfig()
	cfg.applyEnvironmentOverrides()
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks a configuration for errors and fills in defaults.
func Validate(cfg *Config) error {
	if cfg.Output.Format == "" {
		cfg.Output.Format = DefaultFormat
	}
	if _, err := output.NewEncoder(cfg.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if err := output.CheckDir(cfg.Output.Dir); err != nil {
		return fmt.Errorf("output.dir: %w", err)
	}

	if cfg.Encoding != "" {
		if _, err := htmlindex.Get(cfg.Encoding); err != nil {
			return fmt.Errorf("encoding: unknown encoding %q", cfg.Encoding)
		}
	}

	policy, err := batch.ParseTemplatePolicy(cfg.OnTemplateError)
	if err != nil {
		return fmt.Errorf("on_template_error: %w", err)
	}
	cfg.OnTemplateError = string(policy)

	if cfg.Report == "" {
		cfg.Report = DefaultReport
	}
	if _, err := report.NewFormatter(cfg.Report, report.FormatOptions{}); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	for i, p := range cfg.Templates {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("templates[%d]: empty pattern", i)
		}
	}
	for i, p := range cfg.Logs {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("logs[%d]: empty pattern", i)
		}
	}

	if err := output.CheckDir(cfg.Chooser.Dir); err != nil {
		return fmt.Errorf("chooser.dir: %w", err)
	}
	if err := validateFilters("chooser.template_filters", cfg.Chooser.TemplateFilters); err != nil {
		return err
	}
	if err := validateFilters("chooser.log_filters", cfg.Chooser.LogFilters); err != nil {
		return err
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validateFilters(field string, filters []FilterConfig) error {
	for i, f := range filters {
		if f.Name == "" {
			return fmt.Errorf("%s[%d]: name is required", field, i)
		}
		if len(f.Patterns) == 0 {
			return fmt.Errorf("%s[%d] (%s): at least one pattern is required", field, i, f.Name)
		}
		for _, p := range f.Patterns {
			if !doublestar.ValidatePattern(p) {
				return fmt.Errorf("%s[%d] (%s): malformed pattern %q", field, i, f.Name, p)
			}
		}
	}
	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	wh.Token = expandEnvVar(wh.Token)

	trigger, err := webhook.ParseTrigger(string(wh.Trigger))
	if err != nil {
		return err
	}
	wh.Trigger = trigger

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}

	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${") {
		return os.Getenv(s[1:])
	}

	return s
}

// SelectorOptions returns selector options for any configured filters.
func (c ChooserConfig) SelectorOptions() []selector.Option {
	var opts []selector.Option
	if len(c.TemplateFilters) > 0 {
		opts = append(opts, selector.WithTemplateFilters(toFilters(c.TemplateFilters)))
	}
	if len(c.LogFilters) > 0 {
		opts = append(opts, selector.WithLogFilters(toFilters(c.LogFilters)))
	}
	return opts
}

func toFilters(fcs []FilterConfig) []selector.Filter {
	filters := make([]selector.Filter, 0, len(fcs))
	for _, fc := range fcs {
		filters = append(filters, selector.Filter{Name: fc.Name, Patterns: fc.Patterns})
	}
	return filters
}
