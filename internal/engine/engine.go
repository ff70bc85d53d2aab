package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"inferbridge/internal/llm"
)

// TokenFunc receives generated text. done is true exactly once, on the last
// call, with an empty fragment.
type TokenFunc func(fragment string, done bool)

// Engine is a model handle: at most one set of weights and one decode
// context, released context first, then weights, then the runtime reference.
type Engine struct {
	backend llm.Backend
	log     zerolog.Logger
	obs     Observer
	name    string

	// mu serializes Load, Unload and generation; only its holder touches
	// weights and dctx.
	mu      sync.Mutex
	weights llm.Weights
	dctx    llm.DecodeContext
	cfg     ModelConfig

	info          atomic.Pointer[ModelInfo]
	loaded        atomic.Bool
	generating    atomic.Bool
	stopRequested atomic.Bool
	pos           atomic.Int32
}

// ModelInfo describes the loaded model.
type ModelInfo struct {
	Path         string
	Config       ModelConfig
	EmbeddingDim int
	LoadedAt     time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithObserver sets the telemetry observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.obs = o
		}
	}
}

// WithName labels logs and samples, e.g. "llm" or "asr".
func WithName(name string) Option { return func(e *Engine) { e.name = name } }

// New returns an unloaded Engine over backend.
func New(backend llm.Backend, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		log:     zerolog.Nop(),
		obs:     noopObserver{},
		name:    "engine",
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With().Str("engine", e.name).Logger()
	return e
}

// Load loads the model at path. A loaded model is unloaded first. On failure
// every partially acquired resource is released and the engine is unloaded.
func (e *Engine) Load(path string, cfg ModelConfig) (err error) {
	cfg = cfg.Normalize()
	start := time.Now()
	defer func() {
		e.obs.LoadFinished(LoadSample{Engine: e.name, Path: path, Duration: time.Since(start), Err: err})
	}()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.unloadLocked()

	log := e.log.With().Str("path", path).Logger()
	if err := e.backend.Init(); err != nil {
		log.Error().Err(err).Msg("runtime init failed")
		return &LoadError{Stage: StageRuntime, Path: path, Err: err}
	}
	w, err := e.backend.LoadWeights(path, llm.WeightParams{GPULayers: cfg.offloadLayers()})
	if err != nil {
		e.backend.Free()
		log.Error().Err(err).Msg("weights load failed")
		return &LoadError{Stage: StageWeights, Path: path, Err: err}
	}
	dctx, err := w.NewContext(llm.ContextParams{
		ContextSize: cfg.ContextSize,
		BatchSize:   cfg.ContextSize,
		Threads:     cfg.Threads,
	})
	if err != nil {
		_ = w.Close()
		e.backend.Free()
		log.Error().Err(err).Msg("context creation failed")
		return &LoadError{Stage: StageContext, Path: path, Err: err}
	}

	e.weights, e.dctx, e.cfg = w, dctx, cfg
	e.info.Store(&ModelInfo{Path: path, Config: cfg, EmbeddingDim: w.EmbeddingDim(), LoadedAt: time.Now()})
	e.pos.Store(0)
	e.loaded.Store(true)
	log.Info().
		Int("n_ctx", cfg.ContextSize).
		Int("gpu_layers", cfg.GPULayers).
		Int("threads", cfg.Threads).
		Int("n_embd", w.EmbeddingDim()).
		Dur("dur", time.Since(start)).
		Msg("model loaded")
	return nil
}

// Unload releases the model. It is a no-op when nothing is loaded; otherwise
// it waits for any running generation to return.
func (e *Engine) Unload() {
	if !e.loaded.Load() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unloadLocked()
}

func (e *Engine) unloadLocked() {
	if !e.loaded.Load() && e.weights == nil {
		return
	}
	e.loaded.Store(false)
	if e.dctx != nil {
		if err := e.dctx.Close(); err != nil {
			e.log.Warn().Err(err).Msg("context close")
		}
		e.dctx = nil
	}
	if e.weights != nil {
		if err := e.weights.Close(); err != nil {
			e.log.Warn().Err(err).Msg("weights close")
		}
		e.weights = nil
		e.backend.Free()
	}
	path := ""
	if info := e.info.Swap(nil); info != nil {
		path = info.Path
	}
	e.log.Info().Str("path", path).Msg("model unloaded")
}

// Close unloads the model. It satisfies io.Closer.
func (e *Engine) Close() error {
	e.Unload()
	return nil
}

func (e *Engine) IsLoaded() bool     { return e.loaded.Load() }
func (e *Engine) IsGenerating() bool { return e.generating.Load() }

// EmbeddingDimension is the model hidden width, or 0 when unloaded.
func (e *Engine) EmbeddingDimension() int {
	if info, ok := e.Info(); ok {
		return info.EmbeddingDim
	}
	return 0
}

// Position is the next decode position of the current or last generation.
func (e *Engine) Position() int { return int(e.pos.Load()) }

// StopGeneration asks a running generation to end at its next iteration.
// The flag is cleared when the next generation acquires the engine.
func (e *Engine) StopGeneration() { e.stopRequested.Store(true) }

// Info returns the loaded model description without waiting for a running
// generation.
func (e *Engine) Info() (ModelInfo, bool) {
	info := e.info.Load()
	if info == nil || !e.loaded.Load() {
		return ModelInfo{}, false
	}
	return *info, true
}
