package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/extract"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/output"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/pathset"
	"github.com/riceball-k/textfsm-parse-to-csv/pkg/selector"
)

type pair struct {
	log  string
	tmpl string
}

type fakeExtractor struct {
	calls       []pair
	badTemplate string
	badLog      string
}

func (f *fakeExtractor) Extract(_ context.Context, templatePath, logPath string) (*extract.Table, error) {
	f.calls = append(f.calls, pair{log: filepath.Base(logPath), tmpl: filepath.Base(templatePath)})
	if filepath.Base(templatePath) == f.badTemplate {
		return nil, &extract.TemplateError{Template: templatePath, Err: errors.New("syntax error")}
	}
	if filepath.Base(logPath) == f.badLog {
		return nil, errors.New("reading log file: permission denied")
	}
	return &extract.Table{
		Header:  []string{"A"},
		Records: []extract.Record{{extract.Scalar("x")}},
	}, nil
}

type fakeWriter struct {
	written []string
	failFor string
}

func (f *fakeWriter) Write(_ context.Context, _ *extract.Table, logPath, templatePath string) (string, error) {
	name := fmt.Sprintf("%s_%s.csv", extract.Stem(logPath), extract.Stem(templatePath))
	if filepath.Base(logPath) == f.failFor {
		return "", &output.OutputError{Path: name, Err: errors.New("disk full")}
	}
	f.written = append(f.written, name)
	return name, nil
}

type fakeChooser struct {
	paths []string
}

func (f *fakeChooser) ChooseFiles(context.Context, string, []selector.Filter) ([]string, error) {
	return f.paths, nil
}

type fakeRecorder struct {
	runIDs    []string
	artifacts []Artifact
}

func (f *fakeRecorder) RecordArtifact(_ context.Context, runID string, a Artifact) error {
	f.runIDs = append(f.runIDs, runID)
	f.artifacts = append(f.artifacts, a)
	return nil
}

func createFiles(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	return dir
}

func TestRun_CrossProduct(t *testing.T) {
	dir := createFiles(t, "a.log", "b.log", "t1.textfsm", "t2.textfsm", "t3.textfsm")
	ext := &fakeExtractor{}
	w := &fakeWriter{}
	runner := NewRunner(selector.New(nil), ext, w)

	result, err := runner.Run(context.Background(), Request{
		Templates: []string{filepath.Join(dir, "*.textfsm")},
		Logs:      []string{filepath.Join(dir, "*.log")},
	})
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, StateDone, runner.State())
	assert.Len(t, result.LogFiles, 2)
	assert.Len(t, result.Templates, 3)
	assert.Len(t, result.Artifacts, 6)
	assert.Equal(t, 3, result.TemplatesApplied())
	assert.False(t, result.HasFailures())
}

func TestRun_OuterLogInnerTemplate(t *testing.T) {
	dir := createFiles(t, "a.log", "b.log", "t1.textfsm", "t2.textfsm")
	ext := &fakeExtractor{}
	runner := NewRunner(selector.New(nil), ext, &fakeWriter{})

	_, err := runner.Run(context.Background(), Request{
		Templates: []string{filepath.Join(dir, "*.textfsm")},
		Logs:      []string{filepath.Join(dir, "*.log")},
	})
	require.NoError(t, err)

	want := []pair{
		{"a.log", "t1.textfsm"},
		{"a.log", "t2.textfsm"},
		{"b.log", "t1.textfsm"},
		{"b.log", "t2.textfsm"},
	}
	assert.Equal(t, want, ext.calls)
}

func TestRun_DuplicatePatternsProcessOnce(t *testing.T) {
	dir := createFiles(t, "a.log", "t1.textfsm")
	w := &fakeWriter{}
	runner := NewRunner(selector.New(nil), &fakeExtractor{}, w)

	result, err := runner.Run(context.Background(), Request{
		Templates: []string{filepath.Join(dir, "t1.textfsm")},
		Logs:      []string{filepath.Join(dir, "a.log"), filepath.Join(dir, "*.log")},
	})
	require.NoError(t, err)

	assert.Len(t, result.Artifacts, 1)
	assert.Equal(t, []string{"a_t1.csv"}, w.written)
}

func TestRun_CancelledSelectionAborts(t *testing.T) {
	dir := createFiles(t, "t1.textfsm")
	w := &fakeWriter{}
	runner := NewRunner(selector.New(&fakeChooser{}), &fakeExtractor{}, w)

	result, err := runner.Run(context.Background(), Request{
		Templates: []string{filepath.Join(dir, "t1.textfsm")},
	})
	require.NoError(t, err)

	assert.Equal(t, StateAborted, result.State)
	assert.Empty(t, result.Artifacts)
	assert.Empty(t, w.written)
}

func TestRun_CancelledTemplateSelectionAborts(t *testing.T) {
	runner := NewRunner(selector.New(&fakeChooser{}), &fakeExtractor{}, &fakeWriter{})

	result, err := runner.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, StateAborted, result.State)
}

func TestRun_ChooserSelection(t *testing.T) {
	dir := createFiles(t, "a.log", "t1.textfsm")
	chooser := &fakeChooser{paths: []string{filepath.Join(dir, "a.log")}}
	runner := NewRunner(selector.New(chooser), &fakeExtractor{}, &fakeWriter{})

	result, err := runner.Run(context.Background(), Request{
		Templates: []string{filepath.Join(dir, "t1.textfsm")},
	})
	require.NoError(t, err)
	assert.Len(t, result.Artifacts, 1)
}

func TestRun_InvalidPatternFails(t *testing.T) {
	dir := createFiles(t, "t1.textfsm")
	runner := NewRunner(selector.New(nil), &fakeExtractor{}, &fakeWriter{})

	result, err := runner.Run(context.Background(), Request{
		Templates: []string{filepath.Join(dir, "t1.textfsm")},
		Logs:      []string{filepath.Join(dir, "missing.log")},
	})

	var invalid *pathset.InvalidPatternError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StateFailed, result.State)
}

func TestRun_NoMatchesFails(t *testing.T) {
	dir := createFiles(t, "t1.textfsm")
	runner := NewRunner(selector.New(nil), &fakeExtractor{}, &fakeWriter{})

	result, err := runner.Run(context.Background(), Request{
		Templates: []string{filepath.Join(dir, "t1.textfsm")},
		Logs:      []string{filepath.Join(dir, "*.log")},
	})

	var noFiles *NoFilesError
	require.ErrorAs(t, err, &noFiles)
	assert.Equal(t, "log", noFiles.Kind)
	assert.Equal(t, StateFailed, result.State)
}

func TestRun_TemplateErrorAbortsByDefault(t *testing.T) {
	dir := createFiles(t, "a.log", "b.log", "bad.textfsm", "good.textfsm")
	ext := &fakeExtractor{badTemplate: "bad.textfsm"}
	runner := NewRunner(selector.New(nil), ext, &fakeWriter{})

	result, err := runner.Run(context.Background(), Request{
		Templates: []string{filepath.Join(dir, "*.textfsm")},
		Logs:      []string{filepath.Join(dir, "*.log")},
	})

	var tmplErr *extract.TemplateError
	require.ErrorAs(t, err, &tmplErr)
	assert.Equal(t, StateFailed, result.State)
	assert.Len(t, ext.calls, 1, "run must stop at the first template error")
}

func TestRun_TemplateErrorSkipPolicy(t *testing.T) {
	dir := createFiles(t, "a.log", "b.log", "bad.textfsm", "good.textfsm")
	ext := &fakeExtractor{badTemplate: "bad.textfsm"}
	runner := NewRunner(selector.New(nil), ext, &fakeWriter{}, WithTemplatePolicy(PolicySkip))

	result, err := runner.Run(context.Background(), Request{
		Templates: []string{filepath.Join(dir, "*.textfsm")},
		Logs:      []string{filepath.Join(dir, "*.log")},
	})
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.Len(t, result.Artifacts, 2)
	assert.Len(t, result.SkippedTemplates, 1)
	assert.Equal(t, 1, result.TemplatesApplied())
	// bad.textfsm is tried once, then skipped for b.log
	assert.Len(t, ext.calls, 3)
}

func TestRun_OutputErrorIsolatedToPair(t *testing.T) {
	dir := createFiles(t, "a.log", "b.log", "t1.textfsm", "t2.textfsm")
	w := &fakeWriter{failFor: "a.log"}
	runner := NewRunner(selector.New(nil), &fakeExtractor{}, w)

	result, err := runner.Run(context.Background(), Request{
		Templates: []string{filepath.Join(dir, "*.textfsm")},
		Logs:      []string{filepath.Join(dir, "*.log")},
	})
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.Len(t, result.Artifacts, 2)
	require.Len(t, result.Failures, 2)
	var outErr *output.OutputError
	assert.ErrorAs(t, result.Failures[0].Err, &outErr)
}

func TestRun_ExtractionErrorIsOutputError(t *testing.T) {
	dir := createFiles(t, "a.log", "b.log", "t1.textfsm")
	runner := NewRunner(selector.New(nil), &fakeExtractor{badLog: "a.log"}, &fakeWriter{})

	result, err := runner.Run(context.Background(), Request{
		Templates: []string{filepath.Join(dir, "t1.textfsm")},
		Logs:      []string{filepath.Join(dir, "*.log")},
	})
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	var outErr *output.OutputError
	assert.ErrorAs(t, result.Failures[0].Err, &outErr)
	assert.Equal(t, filepath.Join(dir, "a.log"), result.Failures[0].LogFile)
	assert.Len(t, result.Artifacts, 1)
}

func TestRun_RecorderAndHook(t *testing.T) {
	dir := createFiles(t, "a.log", "t1.textfsm", "t2.textfsm")
	rec := &fakeRecorder{}
	var hooked []string
	runner := NewRunner(selector.New(nil), &fakeExtractor{}, &fakeWriter{},
		WithRecorder(rec),
		WithRunID("run-1"),
		WithArtifactHook(func(a Artifact) { hooked = append(hooked, a.Path) }))

	result, err := runner.Run(context.Background(), Request{
		Templates: []string{filepath.Join(dir, "*.textfsm")},
		Logs:      []string{filepath.Join(dir, "a.log")},
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, []string{"run-1", "run-1"}, rec.runIDs)
	assert.Equal(t, []string{"a_t1.csv", "a_t2.csv"}, hooked)
	assert.Equal(t, 1, rec.artifacts[0].Records)
}

func TestParseTemplatePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    TemplatePolicy
		wantErr bool
	}{
		{"", PolicyAbort, false},
		{"abort", PolicyAbort, false},
		{"skip", PolicySkip, false},
		{"ignore", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTemplatePolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
