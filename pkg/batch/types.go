// Package batch runs every template against every log file and writes one
// artifact per pair.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/extract"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/selector"
)

// State is the runner's lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateResolving State = "resolving"
	StateIterating State = "iterating"
	StateDone      State = "done"
	StateAborted   State = "aborted"
	StateFailed    State = "failed"
)

// TemplatePolicy decides what a template compile failure does to the run.
type TemplatePolicy string

const (
	// PolicyAbort stops the whole run on the first bad template.
	PolicyAbort TemplatePolicy = "abort"
	// PolicySkip records the bad template and skips it for remaining pairs.
	PolicySkip TemplatePolicy = "skip"
)

// ParseTemplatePolicy validates a policy name. Empty means PolicyAbort.
func ParseTemplatePolicy(s string) (TemplatePolicy, error) {
	switch TemplatePolicy(s) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicySkip:
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("invalid template error policy %q (must be abort or skip)", s)
	}
}

// Selector resolves template and log inputs.
type Selector interface {
	SelectTemplates(ctx context.Context, patterns []string) (selector.Selection, error)
	SelectLogs(ctx context.Context, patterns []string) (selector.Selection, error)
}

// Extractor applies one template to one log file.
type Extractor interface {
	Extract(ctx context.Context, templatePath, logPath string) (*extract.Table, error)
}

// Writer persists one table and returns the artifact path.
type Writer interface {
	Write(ctx context.Context, table *extract.Table, logPath, templatePath string) (string, error)
}

// Recorder receives every artifact as it is written.
type Recorder interface {
	RecordArtifact(ctx context.Context, runID string, artifact Artifact) error
}

// Request names the inputs of one run. Empty slices fall back to the
// selector's interactive chooser.
type Request struct {
	Templates []string
	Logs      []string
}

// Artifact is one written output file.
type Artifact struct {
	LogFile   string
	Template  string
	Path      string
	Records   int
	WrittenAt time.Time
}

// Failure is one pair (or template) that produced no artifact.
type Failure struct {
	LogFile  string
	Template string
	Err      error
}

// Result summarizes a run.
type Result struct {
	RunID     string
	State     State
	LogFiles  []string
	Templates []string
	Artifacts []Artifact
	Failures  []Failure

	// SkippedTemplates lists templates dropped under PolicySkip.
	SkippedTemplates []string

	StartedAt  time.Time
	FinishedAt time.Time
}

// TemplatesApplied returns the number of templates that were run.
func (r *Result) TemplatesApplied() int {
	return len(r.Templates) - len(r.SkippedTemplates)
}

// HasFailures reports whether any pair failed.
func (r *Result) HasFailures() bool {
	return len(r.Failures) > 0
}

// Duration returns how long the run took.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
