package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Extractor loads templates and applies them to log files.
// Compiled templates are cached by absolute path and modification time, so a
// template shared by many log files in one run is compiled once.
type Extractor struct {
	templates *cache.Cache
	encoding  encoding.Encoding
	encName   string
	cacheTTL  time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithEncoding decodes log files from the named encoding (for example
// "shift_jis" or "windows-1252") before parsing. Names follow the WHATWG
// encoding index. An empty name keeps the raw bytes.
func WithEncoding(name string) Option {
	return func(e *Extractor) {
		e.encName = name
	}
}

// WithCacheTTL bounds how long a compiled template stays cached.
// Zero or negative keeps templates for the life of the Extractor.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Extractor) {
		e.cacheTTL = ttl
	}
}

// New creates an Extractor.
func New(opts ...Option) (*Extractor, error) {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}

	if e.encName != "" {
		enc, err := htmlindex.Get(e.encName)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", e.encName, err)
		}
		e.encoding = enc
	}

	if e.cacheTTL > 0 {
		e.templates = cache.New(e.cacheTTL, 2*e.cacheTTL)
	} else {
		e.templates = cache.New(cache.NoExpiration, 0)
	}

	return e, nil
}

// LoadTemplate reads and compiles the template at path.
// Any failure is returned as a *TemplateError.
func (e *Extractor) LoadTemplate(path string) (*Template, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &TemplateError{Template: path, Err: err}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, &TemplateError{Template: abs, Err: err}
	}

	key := fmt.Sprintf("%s@%d", abs, info.ModTime().UnixNano())
	if cached, ok := e.templates.Get(key); ok {
		return cached.(*Template), nil
	}

	data, err := os.ReadFile(abs) // #nosec G304 -- user-selected template path is expected
	if err != nil {
		return nil, &TemplateError{Template: abs, Err: err}
	}

	tmpl, err := compileTemplate(abs, string(data))
	if err != nil {
		return nil, &TemplateError{Template: abs, Err: err}
	}

	e.templates.Set(key, tmpl, cache.DefaultExpiration)
	return tmpl, nil
}

// CachedTemplates returns the number of compiled templates held in the cache.
func (e *Extractor) CachedTemplates() int {
	return e.templates.ItemCount()
}

// Extract applies the template at templatePath to the log file at logPath.
// Template problems are returned as *TemplateError; reading or parsing the
// log returns a plain wrapped error.
func (e *Extractor) Extract(ctx context.Context, templatePath, logPath string) (*Table, error) {
	tmpl, err := e.LoadTemplate(templatePath)
	if err != nil {
		return nil, err
	}

	text, err := e.ReadLog(logPath)
	if err != nil {
		return nil, err
	}

	return e.Parse(ctx, tmpl, text)
}

// ReadLog reads a log file and decodes it to text.
// Without an encoding the bytes are kept as-is, so invalid UTF-8 sequences
// survive into the parser instead of failing the read.
func (e *Extractor) ReadLog(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-selected log path is expected
	if err != nil {
		return "", fmt.Errorf("reading log file: %w", err)
	}

	if e.encoding == nil {
		return string(data), nil
	}

	decoded, err := e.encoding.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decoding %s as %s: %w", filepath.Base(path), e.encName, err)
	}
	return string(decoded), nil
}

// Parse applies a compiled template to text.
func (e *Extractor) Parse(ctx context.Context, tmpl *Template, text string) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := tmpl.parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing with %s: %w", filepath.Base(tmpl.Path), err)
	}
	return table, nil
}
