package extract

import (
	"fmt"
	"path/filepath"
)

// TemplateError is returned when a template cannot be read or compiled.
type TemplateError struct {
	// Template is the path of the offending template file.
	Template string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %q: %v", filepath.Base(e.Template), e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}
