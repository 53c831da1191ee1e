// Package detector ranks templates by how well they parse a sample of a log
// file.
package detector

import (
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/extract"
)

// DefaultSampleSize is the number of leading log lines that are parsed.
const DefaultSampleSize = 1000

// Parser compiles templates and applies them to text.
type Parser interface {
	LoadTemplate(path string) (*extract.Template, error)
	ReadLog(path string) (string, error)
	Parse(ctx context.Context, tmpl *extract.Template, text string) (*extract.Table, error)
}

// DetectionResult holds the ranked candidates for one log file.
type DetectionResult struct {
	Candidates   []Candidate // Sorted best first
	SampledLines int         // Number of lines parsed
	Truncated    bool        // The log had more lines than the sample
}

// Candidate is one template's outcome on the sample.
type Candidate struct {
	Template string
	Header   []string
	Records  int     // Records extracted from the sample
	Coverage float64 // Share of cells with a value, 0.0 to 1.0
	Err      error   // Compile or parse failure
}

// Detector applies candidate templates to a log sample.
type Detector struct {
	parser     Parser
	sampleSize int
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of lines to sample (default 1000).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// New creates a new Detector.
func New(p Parser, opts ...Option) *Detector {
	d := &Detector{
		parser:     p,
		sampleSize: DefaultSampleSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFromFile samples the head of logPath and ranks templates against it.
func (d *Detector) DetectFromFile(ctx context.Context, logPath string, templates []string) (*DetectionResult, error) {
	text, err := d.parser.ReadLog(logPath)
	if err != nil {
		return nil, err
	}
	return d.DetectFromText(ctx, text, templates)
}

// DetectFromText ranks templates against the head of text.
func (d *Detector) DetectFromText(ctx context.Context, text string, templates []string) (*DetectionResult, error) {
	sample, lines, truncated, err := d.sample(text)
	if err != nil {
		return nil, fmt.Errorf("sampling log: %w", err)
	}

	result := &DetectionResult{
		SampledLines: lines,
		Truncated:    truncated,
	}

	for _, path := range templates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Candidates = append(result.Candidates, d.try(ctx, path, sample))
	}

	// Working templates first, then by records, then by filled cells.
	sort.SliceStable(result.Candidates, func(i, j int) bool {
		a, b := result.Candidates[i], result.Candidates[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if a.Records != b.Records {
			return a.Records > b.Records
		}
		if a.Coverage != b.Coverage {
			return a.Coverage > b.Coverage
		}
		return filepath.Base(a.Template) < filepath.Base(b.Template)
	})

	return result, nil
}

func (d *Detector) try(ctx context.Context, path, sample string) Candidate {
	c := Candidate{Template: path}

	tmpl, err := d.parser.LoadTemplate(path)
	if err != nil {
		c.Err = err
		return c
	}
	c.Header = tmpl.Header

	table, err := d.parser.Parse(ctx, tmpl, sample)
	if err != nil {
		c.Err = err
		return c
	}

	c.Records = table.Len()
	c.Coverage = coverage(table)
	return c
}

func coverage(table *extract.Table) float64 {
	cells := len(table.Header) * table.Len()
	if cells == 0 {
		return 0
	}
	filled := 0
	for _, rec := range table.Records {
		for _, v := range rec {
			if !v.IsEmpty() {
				filled++
			}
		}
	}
	return float64(filled) / float64(cells)
}

// sample returns the first sampleSize lines of text.
// Blank lines are kept since templates may match on them.
func (d *Detector) sample(text string) (string, int, bool, error) {
	var b strings.Builder
	lines := 0
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if lines == d.sampleSize {
			return b.String(), lines, true, nil
		}
		b.WriteString(scanner.Text())
		b.WriteByte('\n')
		lines++
	}

	if err := scanner.Err(); err != nil {
		return "", 0, false, err
	}
	return b.String(), lines, false, nil
}

// BestMatch returns the best candidate that extracted at least one record,
// or nil if none did.
func (r *DetectionResult) BestMatch() *Candidate {
	if !r.HasMatch() {
		return nil
	}
	return &r.Candidates[0]
}

// HasMatch returns true if at least one template extracted a record.
func (r *DetectionResult) HasMatch() bool {
	return len(r.Candidates) > 0 && r.Candidates[0].Err == nil && r.Candidates[0].Records > 0
}
