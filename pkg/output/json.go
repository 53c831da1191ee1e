package output

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/extract"
)

// JSONIndent is the indentation used for JSON artifacts.
const JSONIndent = "    "

// JSONEncoder writes a pretty-printed array of objects keyed by field name.
// Keys keep the template's value order and list values stay JSON arrays.
type JSONEncoder struct{}

// NewJSONEncoder creates a JSON encoder.
func NewJSONEncoder() *JSONEncoder {
	return &JSONEncoder{}
}

// Name returns the format name.
func (e *JSONEncoder) Name() string {
	return "json"
}

// Extension returns ".json".
func (e *JSONEncoder) Extension() string {
	return ".json"
}

// Encode renders the table as JSON.
func (e *JSONEncoder) Encode(ctx context.Context, table *extract.Table, w io.Writer) error {
	rows := make([]orderedRow, len(table.Records))
	for i, record := range table.Records {
		rows[i] = orderedRow{header: table.Header, record: record}
	}

	compact, err := json.Marshal(rows)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", JSONIndent); err != nil {
		return err
	}
	buf.WriteByte('\n')

	_, err = buf.WriteTo(w)
	return err
}

// orderedRow marshals a record as an object whose keys follow the header.
type orderedRow struct {
	header []string
	record extract.Record
}

func (r orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.header {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		value := extract.Scalar("")
		if i < len(r.record) {
			value = r.record[i]
		}
		encoded, err := value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
