package batch

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/extract"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/output"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/selector"
)

// Runner drives one run through Idle -> Resolving -> Iterating -> Done,
// ending in Aborted on cancellation or Failed on a fatal error.
// A Runner is not safe for concurrent use.
type Runner struct {
	selector  Selector
	extractor Extractor
	writer    Writer

	policy     TemplatePolicy
	recorder   Recorder
	logger     *log.Logger
	onArtifact func(Artifact)
	now        func() time.Time
	newRunID   func() string

	state State
}

// Option configures a Runner.
type Option func(*Runner)

// WithTemplatePolicy sets how template failures are handled.
func WithTemplatePolicy(p TemplatePolicy) Option {
	return func(r *Runner) {
		if p != "" {
			r.policy = p
		}
	}
}

// WithRecorder registers a recorder that is told about every artifact.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// WithLogger sets the logger for run progress.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithArtifactHook calls fn after each artifact is written.
func WithArtifactHook(fn func(Artifact)) Option {
	return func(r *Runner) {
		r.onArtifact = fn
	}
}

// WithClock overrides the clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRunID fixes the run ID instead of generating a UUID.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.newRunID = func() string { return id }
	}
}

// NewRunner creates a Runner.
func NewRunner(sel Selector, ext Extractor, w Writer, opts ...Option) *Runner {
	r := &Runner{
		selector:  sel,
		extractor: ext,
		writer:    w,
		policy:    PolicyAbort,
		logger:    log.New(io.Discard),
		now:       time.Now,
		newRunID:  uuid.NewString,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the state reached by the most recent run.
func (r *Runner) State() State {
	return r.state
}

// Run resolves the inputs in req and processes every (log file, template)
// pair, log files in the outer loop.
//
// Cancelling the interactive selection ends in StateAborted with a nil
// error. Selection errors and (under PolicyAbort) template errors end in
// StateFailed and are returned. Failures of individual pairs are recorded in
// Result.Failures and do not stop the run.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	result := &Result{
		RunID:     r.newRunID(),
		StartedAt: r.now(),
	}

	r.setState(result, StateResolving)
	aborted, err := r.resolve(ctx, req, result)
	if err != nil {
		return r.fail(result, err)
	}
	if aborted {
		return result, nil
	}

	r.setState(result, StateIterating)
	skipped := make(map[string]bool)

	for _, logPath := range result.LogFiles {
		for _, tmplPath := range result.Templates {
			if skipped[tmplPath] {
				continue
			}

			err := r.processPair(ctx, result, logPath, tmplPath)
			if err == nil {
				continue
			}
			if r.policy != PolicySkip {
				r.logger.Error("template failed, aborting run", "template", tmplPath, "err", err)
				return r.fail(result, err)
			}

			r.logger.Warn("template failed, skipping", "template", tmplPath, "err", err)
			skipped[tmplPath] = true
			result.SkippedTemplates = append(result.SkippedTemplates, tmplPath)
			result.Failures = append(result.Failures, Failure{Template: tmplPath, Err: err})
		}
	}

	result.FinishedAt = r.now()
	r.setState(result, StateDone)
	r.logger.Info("run complete",
		"logs", len(result.LogFiles),
		"templates", result.TemplatesApplied(),
		"artifacts", len(result.Artifacts),
		"failures", len(result.Failures))

	return result, nil
}

// resolve fills in Templates and LogFiles. It reports aborted when the
// user cancelled a selection.
func (r *Runner) resolve(ctx context.Context, req Request, result *Result) (aborted bool, err error) {
	tmplSel, err := r.selector.SelectTemplates(ctx, req.Templates)
	if err != nil {
		return false, err
	}
	if tmplSel.Outcome == selector.Cancelled {
		r.abort(result, "template selection cancelled")
		return true, nil
	}

	logSel, err := r.selector.SelectLogs(ctx, req.Logs)
	if err != nil {
		return false, err
	}
	if logSel.Outcome == selector.Cancelled {
		r.abort(result, "log selection cancelled")
		return true, nil
	}

	result.Templates = tmplSel.Paths.Resolve()
	if len(result.Templates) == 0 {
		return false, &NoFilesError{Kind: "template", Patterns: tmplSel.Paths.Patterns()}
	}

	result.LogFiles = logSel.Paths.Resolve()
	if len(result.LogFiles) == 0 {
		return false, &NoFilesError{Kind: "log", Patterns: logSel.Paths.Patterns()}
	}

	r.logger.Debug("inputs resolved", "templates", result.Templates, "logs", result.LogFiles)
	return false, nil
}

// processPair extracts and writes one pair. Template errors are returned to
// the caller for the policy decision; every other failure is recorded here.
func (r *Runner) processPair(ctx context.Context, result *Result, logPath, tmplPath string) error {
	table, err := r.extractor.Extract(ctx, tmplPath, logPath)
	if err != nil {
		var tmplErr *extract.TemplateError
		if errors.As(err, &tmplErr) {
			return err
		}
		r.recordFailure(result, logPath, tmplPath, &output.OutputError{Err: err})
		return nil
	}

	path, err := r.writer.Write(ctx, table, logPath, tmplPath)
	if err != nil {
		var outErr *output.OutputError
		if !errors.As(err, &outErr) {
			err = &output.OutputError{Err: err}
		}
		r.recordFailure(result, logPath, tmplPath, err)
		return nil
	}

	artifact := Artifact{
		LogFile:   logPath,
		Template:  tmplPath,
		Path:      path,
		Records:   table.Len(),
		WrittenAt: r.now(),
	}
	result.Artifacts = append(result.Artifacts, artifact)
	r.logger.Info("artifact written", "path", path, "records", artifact.Records)

	if r.recorder != nil {
		if err := r.recorder.RecordArtifact(ctx, result.RunID, artifact); err != nil {
			r.logger.Warn("recording artifact failed", "path", path, "err", err)
		}
	}
	if r.onArtifact != nil {
		r.onArtifact(artifact)
	}

	return nil
}

func (r *Runner) recordFailure(result *Result, logPath, tmplPath string, err error) {
	r.logger.Warn("pair failed", "log", logPath, "template", tmplPath, "err", err)
	result.Failures = append(result.Failures, Failure{LogFile: logPath, Template: tmplPath, Err: err})
}

func (r *Runner) setState(result *Result, s State) {
	r.state = s
	result.State = s
}

func (r *Runner) abort(result *Result, reason string) {
	r.logger.Debug("run aborted", "reason", reason)
	result.FinishedAt = r.now()
	r.setState(result, StateAborted)
}

func (r *Runner) fail(result *Result, err error) (*Result, error) {
	result.FinishedAt = r.now()
	r.setState(result, StateFailed)
	return result, err
}
