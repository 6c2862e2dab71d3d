package tree

import (
	"errors"
	"fmt"
)

var (
	ErrNotDirectory = errors.New("item is not a directory")
	ErrNotLink      = errors.New("item is not a link")
	ErrFrozen       = errors.New("tree is frozen")
	ErrForeignItem  = errors.New("item belongs to another tree")
)

// FormatError reports a raw field that could not be converted to its
// numeric or temporal form.
type FormatError struct {
	Field string
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: cannot convert %q: %v", e.Field, e.Value, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
