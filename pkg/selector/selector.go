// Package selector resolves which templates and log files a run operates on,
// either from explicit patterns or from an interactive chooser.
package selector

import (
	"context"
	"fmt"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/pathset"
)

// Filter is a named group of glob patterns offered by a chooser.
type Filter struct {
	Name     string
	Patterns []string
}

// Chooser asks the user to pick files. An empty result means the user
// cancelled.
type Chooser interface {
	ChooseFiles(ctx context.Context, prompt string, filters []Filter) ([]string, error)
}

// Outcome distinguishes a completed selection from a cancelled one.
type Outcome int

const (
	// Selected means Paths holds the chosen files.
	Selected Outcome = iota
	// Cancelled means the user dismissed the chooser without picking anything.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Selected:
		return "selected"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Selection is the result of resolving one kind of input.
type Selection struct {
	Outcome Outcome
	Paths   *pathset.PathSet
}

// Default prompts and filters.
var (
	TemplatePrompt = "Select template files (multiple allowed)"
	LogPrompt      = "Select log files (multiple allowed)"

	TemplateFilters = []Filter{
		{Name: "Templates", Patterns: []string{"*.textfsm", "*.template"}},
		{Name: "All files", Patterns: []string{"*"}},
	}
	LogFilters = []Filter{
		{Name: "Log files", Patterns: []string{"*.log"}},
		{Name: "All files", Patterns: []string{"*"}},
	}
)

// Selector resolves template and log patterns.
type Selector struct {
	chooser         Chooser
	templateFilters []Filter
	logFilters      []Filter
}

// Option configures a Selector.
type Option func(*Selector)

// WithTemplateFilters overrides the filters offered when choosing templates.
func WithTemplateFilters(filters []Filter) Option {
	return func(s *Selector) {
		if len(filters) > 0 {
			s.templateFilters = filters
		}
	}
}

// WithLogFilters overrides the filters offered when choosing log files.
func WithLogFilters(filters []Filter) Option {
	return func(s *Selector) {
		if len(filters) > 0 {
			s.logFilters = filters
		}
	}
}

// New creates a Selector. chooser may be nil when every run supplies
// explicit patterns; an interactive request then fails.
func New(chooser Chooser, opts ...Option) *Selector {
	s := &Selector{
		chooser:         chooser,
		templateFilters: TemplateFilters,
		logFilters:      LogFilters,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectTemplates resolves template patterns.
func (s *Selector) SelectTemplates(ctx context.Context, patterns []string) (Selection, error) {
	return s.selectFiles(ctx, patterns, TemplatePrompt, s.templateFilters)
}

// SelectLogs resolves log file patterns.
func (s *Selector) SelectLogs(ctx context.Context, patterns []string) (Selection, error) {
	return s.selectFiles(ctx, patterns, LogPrompt, s.logFilters)
}

func (s *Selector) selectFiles(ctx context.Context, patterns []string, prompt string, filters []Filter) (Selection, error) {
	if len(patterns) == 0 {
		if s.chooser == nil {
			return Selection{}, fmt.Errorf("%s: no paths given and no interactive chooser available", prompt)
		}

		chosen, err := s.chooser.ChooseFiles(ctx, prompt, filters)
		if err != nil {
			return Selection{}, fmt.Errorf("choosing files: %w", err)
		}
		if len(chosen) == 0 {
			return Selection{Outcome: Cancelled}, nil
		}
		patterns = chosen
	}

	set, err := pathset.New(patterns)
	if err != nil {
		return Selection{}, err
	}

	return Selection{Outcome: Selected, Paths: set}, nil
}
