package packstream

import (
	"errors"
	"fmt"
)

// ErrEOF is returned whenever a decode operation runs out of bytes before a
// value is complete, including a bare call to decode an empty buffer.
var ErrEOF = errors.New("packstream: unexpected end of data")

// ErrUnsupportedValue is returned when Encode is given a Go value with no
// PackStream representation.
var ErrUnsupportedValue = errors.New("packstream: cannot encode value")

// BadMarkerError is returned when decode encounters a marker byte that
// matches none of the PackStream type ranges.
type BadMarkerError struct {
	Marker byte
}

func (e *BadMarkerError) Error() string {
	return fmt.Sprintf("packstream: bad marker 0x%02X", e.Marker)
}
