package csverrors_test

import (
	"errors"
	"fmt"
	"io"

	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
)

// Example demonstrates reporting a missing column.
func Example() {
	err := csverrors.NewLookupError("Header4")

	fmt.Println(err.Error())
	if name, ok := csverrors.Column(err); ok {
		fmt.Println("missing:", name)
	}

	// Output:
	// lookup: column "Header4" could not be found
	// missing: Header4
}

// ExampleWrap shows wrapping a stream failure while keeping the cause reachable.
func ExampleWrap() {
	err := csverrors.Wrap(io.ErrUnexpectedEOF, csverrors.ErrorTypeIO, "failed to read line").
		WithDetail("line", 42)

	if csverrors.IsType(err, csverrors.ErrorTypeIO) {
		fmt.Println("This is an io error")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Cause was unexpected EOF")
	}

	// Output:
	// This is an io error
	// Cause was unexpected EOF
}

// ExampleNewOutOfRangeError shows the error returned for ragged rows.
func ExampleNewOutOfRangeError() {
	err := csverrors.NewOutOfRangeError("Header3", 2, 1)
	fmt.Println(err)

	// Output:
	// out_of_range: row 1 has no value for column 2 ("Header3")
}
