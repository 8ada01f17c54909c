package quadkey

import (
	"errors"
	"fmt"
)

// ErrInvalidQuadkey is reported for any quadkey containing a byte outside '0'..'3'.
var ErrInvalidQuadkey = errors.New("invalid quadkey digit sequence")

// InvalidQuadkeyError describes the first offending byte of a quadkey.
type InvalidQuadkeyError struct {
	Quadkey string
	Offset  int
	Char    byte
}

func (e *InvalidQuadkeyError) Error() string {
	return fmt.Sprintf("invalid quadkey %q: digit %q at offset %d", e.Quadkey, e.Char, e.Offset)
}

func (e *InvalidQuadkeyError) Unwrap() error { return ErrInvalidQuadkey }
