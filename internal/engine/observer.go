package engine

import "time"

// FinishReason says why a generation ended.
type FinishReason string

const (
	FinishEOG          FinishReason = "eog"
	FinishLength       FinishReason = "length"
	FinishStopped      FinishReason = "stopped"
	FinishCancelled    FinishReason = "cancelled"
	FinishDecodeError  FinishReason = "decode_error"
	FinishNotLoaded    FinishReason = "not_loaded"
	FinishInvalidInput FinishReason = "invalid_input"
	FinishDimMismatch  FinishReason = "dim_mismatch"
	FinishSeedFailed   FinishReason = "seed_failed"
)

// Generation kinds.
const (
	KindPrompt    = "prompt"
	KindEmbedding = "embedding"
)

// LoadSample describes one Load call.
type LoadSample struct {
	Engine   string
	Path     string
	Duration time.Duration
	Err      error
}

// GenerationStart is published when a generation call begins, before any
// precondition check.
type GenerationStart struct {
	Engine string
	ID     string
	Kind   string
}

// GenerationSample describes one finished generation call.
type GenerationSample struct {
	Engine     string
	ID         string
	Kind       string
	Reason     FinishReason
	Fragments  int
	Duration   time.Duration
	FirstToken time.Duration
}

// Observer receives engine samples. Implementations must be cheap and
// non-blocking; they are called on the generating goroutine.
type Observer interface {
	LoadFinished(LoadSample)
	GenerationStarted(GenerationStart)
	GenerationFinished(GenerationSample)
}

// noopObserver is the default; it drops samples.
type noopObserver struct{}

func (noopObserver) LoadFinished(LoadSample)             {}
func (noopObserver) GenerationStarted(GenerationStart)   {}
func (noopObserver) GenerationFinished(GenerationSample) {}
