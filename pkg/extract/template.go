package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirikothe/gotextfsm"
)

// Template is a compiled TextFSM template.
type Template struct {
	// Path is the absolute path the template was loaded from.
	Path string

	// Header lists the template's values in declaration order.
	Header []string

	lists map[string]bool

	// fsm keeps per-value parse state in a shared map, so parses of one
	// Template are serialized and start from a reset state.
	mu  sync.Mutex
	fsm gotextfsm.TextFSM
}

// Name returns the template file name without its extension.
func (t *Template) Name() string {
	return Stem(t.Path)
}

// Stem returns the base name of path without its final extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// compileTemplate compiles template text. path is only used for naming.
func compileTemplate(path, text string) (*Template, error) {
	header, lists, err := readValues(text)
	if err != nil {
		return nil, err
	}

	fsm := gotextfsm.TextFSM{}
	if err := fsm.ParseString(text); err != nil {
		return nil, err
	}

	return &Template{
		Path:   path,
		Header: header,
		lists:  lists,
		fsm:    fsm,
	}, nil
}

// parse runs the template over text and converts the engine's name-keyed
// rows into records ordered by Header.
func (t *Template) parse(text string) (*Table, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := gotextfsm.ParserOutput{}
	out.Reset(t.fsm)
	if err := out.ParseTextString(text, t.fsm, true); err != nil {
		return nil, err
	}

	table := &Table{
		Header:  append([]string{}, t.Header...),
		Records: make([]Record, 0, len(out.Dict)),
	}
	for _, row := range out.Dict {
		record := make(Record, len(t.Header))
		for i, name := range t.Header {
			record[i] = toFieldValue(row[name], t.lists[name])
		}
		table.Records = append(table.Records, record)
	}

	return table, nil
}

// toFieldValue converts one engine value. List values always become Multi,
// even when the engine hands back a bare string.
func toFieldValue(v interface{}, list bool) FieldValue {
	switch val := v.(type) {
	case nil:
		if list {
			return Multi()
		}
		return Scalar("")
	case string:
		if list {
			if val == "" {
				return Multi()
			}
			return Multi(val)
		}
		return Scalar(val)
	case []string:
		return Multi(val...)
	case []interface{}:
		items := make([]string, 0, len(val))
		for _, item := range val {
			items = append(items, fmt.Sprint(item))
		}
		return Multi(items...)
	default:
		return Scalar(fmt.Sprint(val))
	}
}

// readValues scans the Value declarations at the top of a template and
// returns their names in order plus the set of List values.
// Declarations look like: Value [Option[,Option...]] Name (regex)
func readValues(text string) ([]string, map[string]bool, error) {
	var header []string
	lists := make(map[string]bool)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		if trimmed == "" {
			// The value block ends at the first blank line after it starts.
			if len(header) > 0 {
				break
			}
			continue
		}
		if !strings.HasPrefix(line, "Value ") {
			break
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, nil, fmt.Errorf("malformed value line %q", line)
		}

		name, options := fields[1], ""
		if !strings.HasPrefix(fields[2], "(") {
			if len(fields) < 4 {
				return nil, nil, fmt.Errorf("malformed value line %q", line)
			}
			options, name = fields[1], fields[2]
		}

		if strings.Contains(line, "(?P<") {
			return nil, nil, fmt.Errorf("value %s uses nested named groups, which have no CSV form", name)
		}

		header = append(header, name)
		for _, opt := range strings.Split(options, ",") {
			if opt == "List" {
				lists[name] = true
			}
		}
	}

	if len(header) == 0 {
		return nil, nil, errors.New("template declares no values")
	}

	return header, lists, nil
}
