package llm

import (
	"errors"
	"strconv"
)

// ErrBatchFull is returned by Batch.Add once the declared capacity is used.
var ErrBatchFull = errors.New("llm: batch capacity exceeded")

// DecodeError carries the status code of a failed decode. Positive codes mean
// the context had no free slot for the batch; negative codes are hard errors.
type DecodeError struct{ Code int }

func (e DecodeError) Error() string {
	if e.Code > 0 {
		return "llm: decode: no memory slot for batch (code " + strconv.Itoa(e.Code) + ")"
	}
	return "llm: decode failed (code " + strconv.Itoa(e.Code) + ")"
}

// IsDecodeError reports whether err is a DecodeError.
func IsDecodeError(err error) bool {
	var de DecodeError
	return errors.As(err, &de)
}

// dependencyUnavailableError signals that the native runtime is not part of
// this build or failed to initialize.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var de dependencyUnavailableError
	return errors.As(err, &de)
}
