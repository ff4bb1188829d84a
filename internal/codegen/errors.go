package codegen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charlieyou/ucmt/internal/schema"
)

// ErrCodegen marks a generation-time contract violation.
var ErrCodegen = errors.New("codegen error")

// ErrUnsupportedChange signals that a change cannot be safely rendered.
var ErrUnsupportedChange = errors.New("unsupported change")

// UnsupportedChangesError rejects a whole batch, enumerating every
// offending change so the operator can resolve them all at once.
type UnsupportedChangesError struct {
	Changes []schema.Change
}

func (e *UnsupportedChangesError) Error() string {
	var b strings.Builder
	b.WriteString("cannot generate migration, unsupported changes:")
	for _, change := range e.Changes {
		fmt.Fprintf(&b, "\n  - %s %s: %s", change.Type, change.TableName, change.Message)
	}
	return b.String()
}

func (e *UnsupportedChangesError) Unwrap() error {
	return ErrUnsupportedChange
}
