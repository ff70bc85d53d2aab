package engine

import (
	"errors"
	"fmt"

	"inferbridge/internal/llm"
)

var (
	// ErrNotLoaded is returned when an operation needs a loaded model.
	ErrNotLoaded = errors.New("engine: no model loaded")
	// ErrInvalidInput marks caller input rejected before any decode.
	ErrInvalidInput = errors.New("engine: invalid input")
	// ErrDimensionMismatch marks embeddings whose width differs from the model.
	ErrDimensionMismatch = errors.New("engine: embedding dimension mismatch")
)

// LoadStage names the step of Load that failed.
type LoadStage string

const (
	StageRuntime LoadStage = "runtime"
	StageWeights LoadStage = "weights"
	StageContext LoadStage = "context"
)

// LoadError reports a failed Load. Resources acquired before the failing
// stage have been released by the time it is returned.
type LoadError struct {
	Stage LoadStage
	Path  string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("engine: load %q failed at %s: %v", e.Path, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// IsDependencyUnavailable reports whether err was caused by a missing native runtime.
func IsDependencyUnavailable(err error) bool { return llm.IsDependencyUnavailable(err) }
