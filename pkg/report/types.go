// Package report summarizes a batch run for humans and machines.
package report

import (
	"time"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/batch"
)

// Report is the complete run output.
type Report struct {
	// Summary provides aggregate counts.
	Summary Summary

	// Artifacts lists every file that was written.
	Artifacts []Artifact

	// Failures lists every pair or template that produced no artifact.
	Failures []Failure

	// Metadata provides context about the run.
	Metadata Metadata
}

// Summary provides aggregate counts.
type Summary struct {
	// State is the final runner state (done, aborted, failed).
	State string

	// LogFiles is the number of resolved log files.
	LogFiles int

	// Templates is the number of templates that were applied.
	Templates int

	// Artifacts is the number of files written.
	Artifacts int

	// Records is the total number of records across all artifacts.
	Records int

	// Failures is the number of failed pairs and skipped templates.
	Failures int
}

// Artifact is one written file.
type Artifact struct {
	LogFile  string
	Template string
	Path     string
	Records  int
}

// Failure is one pair or template that failed. Error holds the message so
// the report stays serializable.
type Failure struct {
	LogFile  string `json:",omitempty"`
	Template string
	Error    string
}

// Metadata provides context about the run.
type Metadata struct {
	// RunID identifies the run in the ledger.
	RunID string

	// Format is the artifact format (csv, json).
	Format string

	// OutputDir is the artifact directory; empty means beside each log file.
	OutputDir string `json:",omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time

	// Duration is how long the run took.
	Duration time.Duration
}

// NewReport creates a Report from a run result.
func NewReport(result *batch.Result, format, outputDir string) *Report {
	report := &Report{
		Artifacts: make([]Artifact, 0, len(result.Artifacts)),
		Failures:  make([]Failure, 0, len(result.Failures)),
		Metadata: Metadata{
			RunID:     result.RunID,
			Format:    format,
			OutputDir: outputDir,
			StartedAt: result.StartedAt,
			Duration:  result.Duration(),
		},
		Summary: Summary{
			State:     string(result.State),
			LogFiles:  len(result.LogFiles),
			Templates: result.TemplatesApplied(),
			Artifacts: len(result.Artifacts),
			Failures:  len(result.Failures),
		},
	}

	for _, a := range result.Artifacts {
		report.Artifacts = append(report.Artifacts, Artifact{
			LogFile:  a.LogFile,
			Template: a.Template,
			Path:     a.Path,
			Records:  a.Records,
		})
		report.Summary.Records += a.Records
	}

	for _, f := range result.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		report.Failures = append(report.Failures, Failure{
			LogFile:  f.LogFile,
			Template: f.Template,
			Error:    msg,
		})
	}

	return report
}

// HasFailures returns true if any pair failed.
func (r *Report) HasFailures() bool {
	return r.Summary.Failures > 0
}
