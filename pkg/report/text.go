package report

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "textfsm-parse: %d log files, %d templates, %d artifacts, %d failures\n",
		report.Summary.LogFiles,
		report.Summary.Templates,
		report.Summary.Artifacts,
		report.Summary.Failures)
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	for _, a := range report.Artifacts {
		if f.opts.Verbose {
			fmt.Fprintf(w, "%s (%d records)\n", a.Path, a.Records)
		} else {
			fmt.Fprintln(w, a.Path)
		}
	}

	if len(report.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Failed: %d\n", len(report.Failures))
		for _, fail := range report.Failures {
			f.formatFailure(fail, w)
		}
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d log files x %d templates, %d artifacts written, %d failures\n",
		report.Summary.LogFiles,
		report.Summary.Templates,
		report.Summary.Artifacts,
		report.Summary.Failures)

	if f.opts.Verbose {
		fmt.Fprintf(w, "Records: %d\n", report.Summary.Records)
		fmt.Fprintf(w, "Run ID: %s\n", report.Metadata.RunID)
		_, err := fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
		return err
	}

	return nil
}

func (f *TextFormatter) formatFailure(fail Failure, w io.Writer) {
	if fail.LogFile == "" {
		fmt.Fprintf(w, "  - template %s skipped\n", filepath.Base(fail.Template))
	} else {
		fmt.Fprintf(w, "  - %s x %s\n", filepath.Base(fail.LogFile), filepath.Base(fail.Template))
	}

	if f.opts.Verbose {
		fmt.Fprintf(w, "    %s\n", fail.Error)
	}
}
