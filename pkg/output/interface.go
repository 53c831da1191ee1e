// Package output writes extracted tables to CSV or JSON artifact files.
package output

import (
	"context"
	"io"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/extract"
)

// Encoder renders a table in a specific file format.
type Encoder interface {
	// Encode writes the table to w.
	Encode(ctx context.Context, table *extract.Table, w io.Writer) error

	// Name returns the format name (csv, json).
	Name() string

	// Extension returns the file extension including the dot.
	Extension() string
}

// NewEncoder returns the encoder for the named format.
func NewEncoder(format string) (Encoder, error) {
	switch format {
	case "csv", "":
		return NewCSVEncoder(), nil
	case "json":
		return NewJSONEncoder(), nil
	default:
		return nil, &UnknownFormatError{Format: format}
	}
}
