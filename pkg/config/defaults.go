package config

import (
	"os"
	"time"
)

// Default values for configuration.
const (
	DefaultFormat          = "csv"
	DefaultReport          = "text"
	DefaultLogLevel        = "info"
	DefaultOnTemplateError = "abort"
	DefaultWebhookTimeout  = 10 * time.Second
)

// Environment variable names.
const (
	EnvOutput   = "TEXTFSM_PARSE_OUTPUT"
	EnvEncoding = "TEXTFSM_PARSE_ENCODING"
	EnvLedger   = "TEXTFSM_PARSE_LEDGER"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Templates: []string{},
		Logs:      []string{},
		Output: OutputConfig{
			Format: DefaultFormat,
		},
		OnTemplateError: DefaultOnTemplateError,
		Report:          DefaultReport,
		LogLevel:        DefaultLogLevel,
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if dir := os.Getenv(EnvOutput); dir != "" {
		c.Output.Dir = dir
	}
	if enc := os.Getenv(EnvEncoding); enc != "" {
		c.Encoding = enc
	}
	if ledger := os.Getenv(EnvLedger); ledger != "" {
		c.Ledger = ledger
	}
}
