package pathset

import (
	"fmt"
	"strings"
)

// InvalidEntry describes one rejected pattern.
type InvalidEntry struct {
	Pattern string
	Reason  string
}

// InvalidPatternError is returned by New when one or more entries are
// neither an existing file nor a usable glob pattern.
type InvalidPatternError struct {
	Entries []InvalidEntry
}

func (e *InvalidPatternError) Error() string {
	if len(e.Entries) == 1 {
		return fmt.Sprintf("invalid path or pattern %q: %s", e.Entries[0].Pattern, e.Entries[0].Reason)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d invalid paths or patterns:", len(e.Entries))
	for _, entry := range e.Entries {
		fmt.Fprintf(&sb, "\n  - %q: %s", entry.Pattern, entry.Reason)
	}
	return sb.String()
}
