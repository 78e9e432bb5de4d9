package csverrors

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CapturesStack(t *testing.T) {
	err := New(ErrorTypeConfig, "bad delimiter")

	assert.Equal(t, "config: bad delimiter", err.Error())
	require.NotEmpty(t, err.Stack)
	assert.Contains(t, err.Stack[0].Function, "TestNew_CapturesStack")
}

func TestWrap(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrorTypeIO, "ignored"))
	})

	t.Run("plain error", func(t *testing.T) {
		err := Wrap(io.ErrClosedPipe, ErrorTypeIO, "write failed")
		assert.Equal(t, "io: write failed: io: read/write on closed pipe", err.Error())
		assert.True(t, errors.Is(err, io.ErrClosedPipe))
	})

	t.Run("preserves stack of structured cause", func(t *testing.T) {
		inner := New(ErrorTypeLookup, "missing")
		outer := Wrap(inner, ErrorTypeDatabase, "copy failed")
		assert.Equal(t, inner.Stack, outer.Stack)

		var target *Error
		require.True(t, errors.As(outer, &target))
		assert.Equal(t, ErrorTypeDatabase, target.Type)
	})
}

func TestIsType(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		errType ErrorType
		want    bool
	}{
		{"matching", NewLookupError("x"), ErrorTypeLookup, true},
		{"other type", NewLookupError("x"), ErrorTypeIO, false},
		{"plain error", io.EOF, ErrorTypeIO, false},
		{"nil", nil, ErrorTypeIO, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsType(tt.err, tt.errType))
		})
	}
}

func TestOutOfRangeDetails(t *testing.T) {
	err := NewOutOfRangeError("Header3", 2, 7)

	assert.Equal(t, "Header3", err.Details[DetailColumn])
	assert.Equal(t, 2, err.Details[DetailIndex])
	assert.Equal(t, 7, err.Details[DetailRow])

	name, ok := Column(err)
	assert.True(t, ok)
	assert.Equal(t, "Header3", name)

	unnamed := NewOutOfRangeError("", 9, 1)
	assert.Equal(t, "out_of_range: row 1 has no value for column 9", unnamed.Error())
}

func TestColumn_NotStructured(t *testing.T) {
	_, ok := Column(io.EOF)
	assert.False(t, ok)
}
