// Package csverrors provides structured error handling for csvbulk with error
// categorization, key-value context and stack traces.
//
// # Overview
//
// The tokenizer never fails on malformed quoting, so the taxonomy is small:
//   - ErrorTypeIO: the underlying stream failed to read or write
//   - ErrorTypeLookup: a column name is not part of the header
//   - ErrorTypeOutOfRange: a row is too short for the requested column
//   - ErrorTypeConfig / ErrorTypeValidation: bad dialect or configuration
//   - ErrorTypeDatabase: a bulk loader rejected the data
//
// # Basic Usage
//
//	// Report a missing column
//	return csverrors.NewLookupError("Header4")
//
//	// Wrap a stream failure
//	if err != nil {
//	    return csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to read line").
//	        WithDetail("line", n)
//	}
//
//	// Inspect
//	if csverrors.IsType(err, csverrors.ErrorTypeLookup) {
//	    name, _ := csverrors.Column(err)
//	    ...
//	}
//
// Error instances are not safe for concurrent modification. Finish adding
// details before sharing an error across goroutines.
package csverrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeInternal represents internal errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeIO represents failures of the underlying stream
	ErrorTypeIO ErrorType = "io"
	// ErrorTypeLookup represents a column name that does not exist
	ErrorTypeLookup ErrorType = "lookup"
	// ErrorTypeOutOfRange represents a column index beyond the current row
	ErrorTypeOutOfRange ErrorType = "out_of_range"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeValidation represents invalid arguments
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeDatabase represents bulk load failures reported by a database
	ErrorTypeDatabase ErrorType = "database"
)

// Detail keys shared by the constructors below.
const (
	DetailColumn = "column"
	DetailIndex  = "index"
	DetailRow    = "row"
	DetailLine   = "line"
)

// Error represents a structured error with context.
//
// Fields:
//   - Type: Categorizes the error
//   - Message: Human-readable error description
//   - Cause: The underlying error that caused this error
//   - Details: Key-value pairs providing additional context
//   - Stack: Call stack at the point of error creation
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface, returning the type, message and cause.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error so errors.Is and errors.As see the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. Calls can be chained.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message, capturing the
// call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error, preserving it as the cause. If err already
// is (or wraps) an *Error its stack trace is reused. Returns nil for a nil err.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// NewLookupError reports a column name that is not present in the header.
func NewLookupError(column string) *Error {
	e := &Error{
		Type:    ErrorTypeLookup,
		Message: fmt.Sprintf("column %q could not be found", column),
		Stack:   captureStack(2),
	}
	return e.WithDetail(DetailColumn, column)
}

// NewOutOfRangeError reports a row that has no value for the given column.
// column may be empty when the index lies beyond the header as well.
func NewOutOfRangeError(column string, index, row int) *Error {
	msg := fmt.Sprintf("row %d has no value for column %d", row, index)
	if column != "" {
		msg = fmt.Sprintf("row %d has no value for column %d (%q)", row, index, column)
	}
	e := &Error{
		Type:    ErrorTypeOutOfRange,
		Message: msg,
		Stack:   captureStack(2),
	}
	return e.WithDetail(DetailColumn, column).
		WithDetail(DetailIndex, index).
		WithDetail(DetailRow, row)
}

// IsType checks whether err is, or wraps, an *Error of the given type.
// Only the outermost *Error in the chain is considered.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// Column returns the column name attached to a lookup or out-of-range error.
func Column(err error) (string, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	name, ok := e.Details[DetailColumn].(string)
	return name, ok
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the given number of frames from the top.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
