// Package engine owns one loaded model and drives generation on it. It is
// structured into small files by concern:
//
//   - engine.go: Engine type, Load/Unload, state getters, StopGeneration.
//   - config.go: ModelConfig, defaults and normalization.
//   - errors.go: error types and helpers (LoadError, IsLoadError).
//   - generate.go: the shared decode loop and its two seeding strategies
//     (tokenized prompt, injected embeddings).
//   - sampling.go: greedy token choice and token-to-text conversion.
//   - observer.go / observer_memory.go: load and generation samples for
//     telemetry.
//
// An Engine serializes Load, Unload and every generation on a single mutex.
// IsLoaded, IsGenerating, EmbeddingDimension and StopGeneration never block.
// Generation runs on the caller's goroutine and reports each text fragment
// through a TokenFunc, ending with exactly one ("", true).
package engine
