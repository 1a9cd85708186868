package series

import (
	"errors"
	"fmt"
)

// ErrDataFormat marks input series that cannot be normalized.
var ErrDataFormat = errors.New("data format error")

// DataFormatError describes a missing or malformed column.
type DataFormatError struct {
	Column string
	Reason string
}

func (e *DataFormatError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: %s", ErrDataFormat, e.Reason)
	}
	return fmt.Sprintf("%s: column %s: %s", ErrDataFormat, e.Column, e.Reason)
}

func (e *DataFormatError) Unwrap() error {
	return ErrDataFormat
}

func formatErrorf(column, format string, args ...interface{}) error {
	return &DataFormatError{Column: column, Reason: fmt.Sprintf(format, args...)}
}
