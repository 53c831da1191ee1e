package output

import "fmt"

// OutputError is returned when an artifact cannot be produced.
type OutputError struct {
	// Path is the artifact path that was being written, if known.
	Path string
	Err  error
}

func (e *OutputError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("output failed: %v", e.Err)
	}
	return fmt.Sprintf("writing %q: %v", e.Path, e.Err)
}

func (e *OutputError) Unwrap() error {
	return e.Err
}

// DirNotFoundError is returned when the output directory is missing or is
// not a directory.
type DirNotFoundError struct {
	Dir string
	Err error
}

func (e *DirNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("output directory %q not found: %v", e.Dir, e.Err)
	}
	return fmt.Sprintf("output directory %q is not a directory", e.Dir)
}

func (e *DirNotFoundError) Unwrap() error {
	return e.Err
}

// UnknownFormatError is returned for an unsupported output format name.
type UnknownFormatError struct {
	Format string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown output format %q (use csv or json)", e.Format)
}
