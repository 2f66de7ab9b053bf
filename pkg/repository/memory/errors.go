package memory

import "errors"

// ErrNotFound is returned when a requested entry does not exist
var ErrNotFound = errors.New("not found")
