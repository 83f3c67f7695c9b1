package stream

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrCircular is returned when a composite value is reached again while
	// it is still being traversed. Output produced before the cycle was
	// detected has already been handed to the consumer and is necessarily
	// truncated JSON.
	ErrCircular = errors.New("cannot encode circular structure")

	// ErrSourceEnded is returned when a source is attached after it has
	// already completed with its data unrecoverable.
	ErrSourceEnded = errors.New("source already ended, data lost")

	// ErrSourceFlowing is returned when a source is attached while it is
	// pushing data on its own account. Backpressure cannot be asserted over
	// such a source, so encoding aborts rather than silently dropping data.
	ErrSourceFlowing = errors.New("source in flowing mode, cannot apply backpressure")

	// ErrClosed is returned by Read after the consumer has closed the
	// encoder.
	ErrClosed = errors.New("encoder closed")
)

// An UnsupportedTypeError is returned when a value's type matches none of
// the kinds the encoder knows how to emit.
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("cannot encode value of type %s", e.Type)
}
