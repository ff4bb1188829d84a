package schema

import "errors"

// ErrLoad marks a malformed or invalid declared schema.
var ErrLoad = errors.New("schema load error")

// ErrDiff is reserved for differ-internal failures. The algorithm itself
// does not currently raise it.
var ErrDiff = errors.New("schema diff error")
