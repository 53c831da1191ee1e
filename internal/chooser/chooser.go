// Package chooser is the terminal multi-file picker used when templates or
// log files are not given on the command line.
package chooser

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/selector"
)

// Chooser implements selector.Chooser with a bubbletea program.
type Chooser struct {
	dir       string
	in        io.Reader
	out       io.Writer
	altScreen bool
}

// Option configures a Chooser.
type Option func(*Chooser)

// WithDir sets the directory that is listed. Defaults to the working
// directory.
func WithDir(dir string) Option {
	return func(c *Chooser) {
		c.dir = dir
	}
}

// WithIO sets the terminal input and output. Defaults to stdin and stderr so
// that stdout stays clean for the run summary.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(c *Chooser) {
		c.in = in
		c.out = out
	}
}

// WithAltScreen runs the picker in the terminal's alternate screen.
func WithAltScreen() Option {
	return func(c *Chooser) {
		c.altScreen = true
	}
}

// New creates a Chooser.
func New(opts ...Option) *Chooser {
	c := &Chooser{
		in:  os.Stdin,
		out: os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ selector.Chooser = (*Chooser)(nil)

// ChooseFiles shows the picker and returns the selected paths. A cancelled
// picker returns an empty slice and a nil error.
func (c *Chooser) ChooseFiles(ctx context.Context, prompt string, filters []selector.Filter) ([]string, error) {
	dir := c.dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		dir = wd
	}

	opts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithInput(c.in),
		tea.WithOutput(c.out),
	}
	if c.altScreen {
		opts = append(opts, tea.WithAltScreen())
	}

	p := tea.NewProgram(newModel(dir, prompt, filters), opts...)
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("running file chooser: %w", err)
	}

	m, ok := final.(*model)
	if !ok {
		return nil, fmt.Errorf("file chooser returned %T", final)
	}
	return m.Paths(), nil
}
