// Package logging builds the diagnostic logger shared by every command.
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// Prefix is printed before every log line.
const Prefix = "textfsm-parse"

// Options controls logger construction.
type Options struct {
	// Level is debug, info, warn, error or fatal. Empty means info.
	Level string

	// Verbose forces debug level and reports the caller.
	Verbose bool

	// Quiet raises the level to error so only failures are logged.
	Quiet bool
}

// New creates a logger writing to w.
func New(w io.Writer, opts Options) (*log.Logger, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}
	if opts.Quiet && level < log.ErrorLevel {
		level = log.ErrorLevel
	}
	if opts.Verbose {
		level = log.DebugLevel
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          Prefix,
		ReportTimestamp: true,
		ReportCaller:    opts.Verbose,
		TimeFormat:      time.TimeOnly,
	}), nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
