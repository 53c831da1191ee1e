package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/extract"
)

// TimestampLayout is the timestamp suffix appended to artifact names.
const TimestampLayout = "20060102_150405"

// Writer writes one artifact per table.
type Writer struct {
	dir     string
	encoder Encoder
	now     func() time.Time
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithClock overrides the clock used to timestamp artifact names.
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWriter creates a Writer that places artifacts in dir, or beside each
// log file when dir is empty.
func NewWriter(dir string, encoder Encoder, opts ...WriterOption) *Writer {
	w := &Writer{
		dir:     dir,
		encoder: encoder,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Format returns the encoder's format name.
func (w *Writer) Format() string {
	return w.encoder.Name()
}

// ArtifactName builds <log-stem>_<template-stem>_<YYYYMMDD>_<HHMMSS><ext>.
func ArtifactName(logPath, templatePath string, at time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%s%s",
		extract.Stem(logPath),
		extract.Stem(templatePath),
		at.Format(TimestampLayout),
		ext)
}

// Path returns where the artifact for this pair would be written at time at.
func (w *Writer) Path(logPath, templatePath string, at time.Time) string {
	dir := w.dir
	if dir == "" {
		dir = filepath.Dir(logPath)
	}
	return filepath.Join(dir, ArtifactName(logPath, templatePath, at, w.encoder.Extension()))
}

// Write encodes table to a new artifact and returns its absolute path.
// The timestamp in the name is taken at write time; two artifacts for the
// same pair within one second share a name and the later one wins.
// Failures are returned as *OutputError and are not retried; a file that
// could not be fully encoded is removed.
func (w *Writer) Write(ctx context.Context, table *extract.Table, logPath, templatePath string) (string, error) {
	path := w.Path(logPath, templatePath, w.now())
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	f, err := os.Create(path) // #nosec G304 -- artifact path is derived from user-selected inputs
	if err != nil {
		return "", &OutputError{Path: path, Err: err}
	}

	encErr := w.encoder.Encode(ctx, table, f)
	closeErr := f.Close()
	if err := errors.Join(encErr, closeErr); err != nil {
		// A partial artifact must not be mistaken for a result.
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
		return "", &OutputError{Path: path, Err: err}
	}

	return path, nil
}

// CheckDir verifies that dir exists and is a directory.
// An empty dir is valid and means "beside the input file".
func CheckDir(dir string) error {
	if dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return &DirNotFoundError{Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return &DirNotFoundError{Dir: dir}
	}
	return nil
}
