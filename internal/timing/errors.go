package timing

import (
	"errors"
	"fmt"
)

// ErrEmpty is matched (via errors.Is) by a NormalizationError of KindEmpty
// or KindMalformed: the payload gave no usable verse interval. Fetch
// failures (KindUnavailable) do not match; use IsUnavailable to catch every
// reason timing cannot be used.
var ErrEmpty = errors.New("timing: no valid verse intervals")

// ErrorKind classifies why timing is unavailable for a recitation.
type ErrorKind string

const (
	KindEmpty       ErrorKind = "empty"       // payload blank, or decoded but nothing usable
	KindMalformed   ErrorKind = "malformed"   // payload could not be decoded
	KindUnavailable ErrorKind = "unavailable" // payload could not be fetched
)

// NormalizationError reports that synchronized highlighting is unavailable
// for a recitation. It is never fatal: playback continues without timing.
type NormalizationError struct {
	Kind ErrorKind
	Key  Key
	Err  error
}

func (e *NormalizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("timing %s for %s: %v", e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("timing %s for %s", e.Kind, e.Key)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrEmpty) hold for empty and malformed payloads.
func (e *NormalizationError) Is(target error) bool {
	return target == ErrEmpty && (e.Kind == KindEmpty || e.Kind == KindMalformed)
}

// Unavailable wraps err as a fetch failure for key.
func Unavailable(key Key, err error) error {
	return &NormalizationError{Kind: KindUnavailable, Key: key, Err: err}
}

// IsUnavailable reports whether err means timing cannot be used, for any reason.
func IsUnavailable(err error) bool {
	var ne *NormalizationError
	return errors.As(err, &ne)
}
