package report

import (
	"context"
	"encoding/json"
	"io"
)

// JSONFormatter writes the report as indented JSON. Quiet mode writes only
// the Summary object.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a JSON formatter.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

func (f *JSONFormatter) Name() string {
	return "json"
}

func (f *JSONFormatter) Format(_ context.Context, report *Report, w io.Writer) error {
	var v any = report
	if f.opts.Quiet {
		v = report.Summary
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
