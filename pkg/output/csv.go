package output

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/extract"
)

// CSVEncoder writes a header row followed by one row per record.
// List values are flattened to a single comma-joined cell.
type CSVEncoder struct{}

// NewCSVEncoder creates a CSV encoder.
func NewCSVEncoder() *CSVEncoder {
	return &CSVEncoder{}
}

// Name returns the format name.
func (e *CSVEncoder) Name() string {
	return "csv"
}

// Extension returns ".csv".
func (e *CSVEncoder) Extension() string {
	return ".csv"
}

// Encode renders the table as CSV.
func (e *CSVEncoder) Encode(ctx context.Context, table *extract.Table, w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(table.Header); err != nil {
		return err
	}

	row := make([]string, len(table.Header))
	for _, record := range table.Records {
		for i := range row {
			row[i] = ""
			if i < len(record) {
				row[i] = record[i].String()
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
