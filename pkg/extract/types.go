// Package extract runs TextFSM templates over log text and returns the
// extracted records as tables.
package extract

import (
	"encoding/json"
	"strings"
)

// ValueKind tags the variant held by a FieldValue.
type ValueKind int

const (
	// ScalarKind holds a single string.
	ScalarKind ValueKind = iota
	// MultiKind holds an ordered list of strings, produced by List values.
	MultiKind
)

// FieldValue is one cell of a record: either a scalar string or an ordered
// list of strings.
type FieldValue struct {
	kind   ValueKind
	scalar string
	multi  []string
}

// Scalar returns a single-valued FieldValue.
func Scalar(s string) FieldValue {
	return FieldValue{kind: ScalarKind, scalar: s}
}

// Multi returns a list-valued FieldValue.
func Multi(values ...string) FieldValue {
	return FieldValue{kind: MultiKind, multi: append([]string{}, values...)}
}

// Kind reports which variant v holds.
func (v FieldValue) Kind() ValueKind {
	return v.kind
}

// IsMulti reports whether v holds a list.
func (v FieldValue) IsMulti() bool {
	return v.kind == MultiKind
}

// Values returns the list elements, or a one-element slice for a scalar.
func (v FieldValue) Values() []string {
	if v.kind == MultiKind {
		return append([]string{}, v.multi...)
	}
	return []string{v.scalar}
}

// String flattens v: scalars as-is, lists joined with commas.
// The flattening is lossy; ["a,b"] and ["a", "b"] render identically.
func (v FieldValue) String() string {
	if v.kind == MultiKind {
		return strings.Join(v.multi, ",")
	}
	return v.scalar
}

// IsEmpty reports whether v carries no data.
func (v FieldValue) IsEmpty() bool {
	if v.kind == MultiKind {
		return len(v.multi) == 0
	}
	return v.scalar == ""
}

// MarshalJSON encodes scalars as JSON strings and lists as JSON arrays.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.kind == MultiKind {
		return json.Marshal(v.multi)
	}
	return json.Marshal(v.scalar)
}

// Record is one extracted row; values are aligned with Table.Header.
type Record []FieldValue

// Table is the full result of applying one template to one log file.
type Table struct {
	Header  []string
	Records []Record
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Records)
}

// Row returns record i keyed by field name.
func (t *Table) Row(i int) map[string]FieldValue {
	row := make(map[string]FieldValue, len(t.Header))
	for j, name := range t.Header {
		if j < len(t.Records[i]) {
			row[name] = t.Records[i][j]
		}
	}
	return row
}
