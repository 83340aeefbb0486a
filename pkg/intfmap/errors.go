package intfmap

import (
	"errors"
	"fmt"
)

var (
	ErrTooLarge       = errors.New("mapping document too large")
	ErrParseFailed    = errors.New("malformed mapping document")
	ErrEmptyEntry     = errors.New("mapping entry has none of the required fields")
	ErrInvalidField   = errors.New("invalid mapping field")
	ErrEmptyTable     = errors.New("mapping table is empty")
	ErrDuplicateEntry = errors.New("duplicate mapping entry")
)

// ConfigError describes why a mapping table could not be built.
// Kind is one of the Err* sentinels; errors.Is matches against it.
type ConfigError struct {
	Kind error
	// EntryIndex is the zero-based position in the document, -1 when the
	// error is not tied to one entry.
	EntryIndex int
	// Field is the document key at fault, if any.
	Field string
	// Err is the underlying cause, if any.
	Err error
}

func (e *ConfigError) Error() string {
	msg := e.Kind.Error()
	if e.EntryIndex >= 0 {
		msg = fmt.Sprintf("entry %d: %s", e.EntryIndex, msg)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Field)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConfigError) Is(target error) bool {
	return target == e.Kind
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func tableError(kind error, cause error) *ConfigError {
	return &ConfigError{Kind: kind, EntryIndex: -1, Err: cause}
}

func entryError(kind error, index int, field string, cause error) *ConfigError {
	return &ConfigError{Kind: kind, EntryIndex: index, Field: field, Err: cause}
}
