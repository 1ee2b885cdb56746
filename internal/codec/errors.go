package codec

import (
	"errors"
	"fmt"
)

// ErrCodeMalformedSerialization is the error code for undecodable map text.
const ErrCodeMalformedSerialization = "MALFORMED_SERIALIZATION"

// MalformedSerializationError reports a token that cannot be parsed or whose
// insertion would break the map invariants. Callers fall back to an identity
// map rather than guessing.
type MalformedSerializationError struct {
	Index int    // zero-based token index
	Token string // offending token
	Err   error  // underlying cause
}

func (e *MalformedSerializationError) Error() string {
	return fmt.Sprintf("%s: token %d %q: %v", ErrCodeMalformedSerialization, e.Index, e.Token, e.Err)
}

func (e *MalformedSerializationError) Unwrap() error { return e.Err }

// IsMalformed returns true if the error is a MalformedSerializationError.
func IsMalformed(err error) bool {
	var me *MalformedSerializationError
	return errors.As(err, &me)
}
