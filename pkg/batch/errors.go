package batch

import "fmt"

// NoFilesError is returned when a set of patterns resolves to no files.
type NoFilesError struct {
	// Kind is "template" or "log".
	Kind     string
	Patterns []string
}

func (e *NoFilesError) Error() string {
	return fmt.Sprintf("no %s files matched %v", e.Kind, e.Patterns)
}
