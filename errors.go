package gitver

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no repository or reference exists at the
// requested location.
var ErrNotFound = errors.New("not found")

// FormatError reports text that does not contain a valid version.
type FormatError struct {
	Text   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%q: %s", e.Text, e.Reason)
}
