// Package config provides configuration loading and validation for textfsm-parse.
package config

import (
	"time"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/webhook"
)

// Config is the root configuration structure loaded from YAML or TOML.
type Config struct {
	// Templates and Logs are literal paths or glob patterns. Leaving either
	// empty opens the interactive chooser.
	Templates []string `yaml:"templates" toml:"templates"`
	Logs      []string `yaml:"logs" toml:"logs"`

	Output OutputConfig `yaml:"output" toml:"output"`

	// Encoding names the log file encoding (e.g. shift_jis). Empty means
	// the raw bytes are used.
	Encoding string `yaml:"encoding,omitempty" toml:"encoding"`

	// OnTemplateError is abort or skip.
	OnTemplateError string `yaml:"on_template_error,omitempty" toml:"on_template_error"`

	// Ledger is the path of the SQLite run history. Empty disables it.
	Ledger string `yaml:"ledger,omitempty" toml:"ledger"`

	// Report is the summary format printed after a run (text, json).
	Report string `yaml:"report,omitempty" toml:"report"`

	LogLevel string `yaml:"log_level,omitempty" toml:"log_level"`

	Chooser  ChooserConfig   `yaml:"chooser,omitempty" toml:"chooser"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" toml:"webhooks"`
}

// OutputConfig controls where and how artifacts are written.
type OutputConfig struct {
	// Dir must be an existing directory. Empty writes beside each log file.
	Dir string `yaml:"dir,omitempty" toml:"dir"`

	// Format is csv or json.
	Format string `yaml:"format,omitempty" toml:"format"`
}

// ChooserConfig controls the interactive chooser: the directory it lists,
// whether it takes the alternate screen and the file-type filters it offers.
type ChooserConfig struct {
	// Dir is the directory listed. Empty uses the working directory.
	Dir             string         `yaml:"dir,omitempty" toml:"dir"`
	AltScreen       bool           `yaml:"alt_screen,omitempty" toml:"alt_screen"`
	TemplateFilters []FilterConfig `yaml:"template_filters,omitempty" toml:"template_filters"`
	LogFilters      []FilterConfig `yaml:"log_filters,omitempty" toml:"log_filters"`
}

// FilterConfig is one named set of glob patterns.
type FilterConfig struct {
	Name     string   `yaml:"name" toml:"name"`
	Patterns []string `yaml:"patterns" toml:"patterns"`
}

// WebhookConfig defines a webhook endpoint for sending run reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty" toml:"name"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url" toml:"url"`

	// Token is an optional bearer token for authentication.
	// $VAR and ${VAR} are expanded from the environment.
	Token string `yaml:"token,omitempty" toml:"token"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_failures" if not specified.
	Trigger webhook.Trigger `yaml:"trigger,omitempty" toml:"trigger"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty" toml:"timeout"`
}
