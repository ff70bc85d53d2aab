package bridge

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"inferbridge/internal/engine"
	"inferbridge/internal/llm"
	"inferbridge/internal/registry"
	"inferbridge/pkg/types"
)

// Kind names a service.
type Kind string

const (
	// KindLLM serves text prompts.
	KindLLM Kind = "llm"
	// KindASR decodes audio encoder embeddings into text.
	KindASR Kind = "asr"
)

// InvalidHandle is never issued; LoadModel returns it on failure.
const InvalidHandle int64 = 0

// Service is the caller-facing surface: opaque int64 handles, callbacks for
// streaming, and no error returns. Failures surface as InvalidHandle, an
// empty string, false, 0, or a lone ("", true) delivery.
type Service struct {
	kind     Kind
	backend  llm.Backend
	handles  *registry.Handles[*engine.Engine]
	log      zerolog.Logger
	obs      engine.Observer
	attacher Attacher
	defaults engine.ModelConfig
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l zerolog.Logger) Option       { return func(s *Service) { s.log = l } }
func WithObserver(o engine.Observer) Option    { return func(s *Service) { s.obs = o } }
func WithAttacher(a Attacher) Option           { return func(s *Service) { s.attacher = a } }
func WithDefaults(c engine.ModelConfig) Option { return func(s *Service) { s.defaults = c } }

// New returns a Service of the given kind. ASR services default to greedy
// decoding with a 256 token output limit.
func New(kind Kind, backend llm.Backend, opts ...Option) *Service {
	s := &Service{
		kind:     kind,
		backend:  backend,
		handles:  registry.NewHandles[*engine.Engine](),
		log:      zerolog.Nop(),
		attacher: NoopAttacher{},
		defaults: engine.DefaultModelConfig(),
	}
	if kind == KindASR {
		s.defaults = engine.ASRModelConfig()
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With().Str("service", string(kind)).Logger()
	s.handles.OnClose = func(id int64, err error) {
		if err != nil {
			s.log.Warn().Int64("handle", id).Err(err).Msg("handle close")
			return
		}
		s.log.Debug().Int64("handle", id).Msg("handle released")
	}
	return s
}

func (s *Service) Kind() Kind { return s.kind }

// LoadModel loads path into a new handle. Zero fields of cfg take the
// service defaults. It returns InvalidHandle on failure.
func (s *Service) LoadModel(path string, cfg engine.ModelConfig) int64 {
	e := engine.New(s.backend,
		engine.WithLogger(s.log),
		engine.WithObserver(s.obs),
		engine.WithName(string(s.kind)),
	)
	if err := e.Load(path, cfg.WithDefaults(s.defaults)); err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("load model")
		return InvalidHandle
	}
	id := s.handles.Register(e)
	s.log.Info().Int64("handle", id).Str("path", path).Msg("handle registered")
	return id
}

// StartGeneration streams a completion of prompt to cb. It blocks until
// generation ends. Unknown handles deliver only ("", true).
func (s *Service) StartGeneration(ctx context.Context, handle int64, prompt string, maxTokens int, temperature float32, cb Callback) {
	out := newSink(cb, s.attacher, s.log.With().Int64("handle", handle).Logger())
	l, ok := s.handles.Acquire(handle)
	if !ok {
		s.log.Warn().Int64("handle", handle).Msg("generate on unknown handle")
		out.send("", true)
		return
	}
	defer l.Release()
	l.Value().Generate(ctx, prompt, maxTokens, temperature, out.send)
}

// GenerateSync returns the full completion of prompt, "" on failure.
func (s *Service) GenerateSync(ctx context.Context, handle int64, prompt string, maxTokens int, temperature float32) string {
	var sb strings.Builder
	s.StartGeneration(ctx, handle, prompt, maxTokens, temperature, appendTo(&sb))
	return sb.String()
}

// DecodeEmbeddings decodes numTokens rows of width embeddingDim into text,
// streaming to cb. The caller's slice is copied before decoding starts and
// never read past numTokens*embeddingDim.
func (s *Service) DecodeEmbeddings(ctx context.Context, handle int64, embeddings []float32, numTokens, embeddingDim, maxOutputTokens int, cb Callback) {
	log := s.log.With().Int64("handle", handle).Logger()
	out := newSink(cb, s.attacher, log)
	data, ok := copyEmbeddings(embeddings, numTokens, embeddingDim)
	if !ok {
		log.Warn().
			Int("len", len(embeddings)).
			Int("num_tokens", numTokens).
			Int("embedding_dim", embeddingDim).
			Msg("embedding input rejected")
		out.send("", true)
		return
	}
	l, ok := s.handles.Acquire(handle)
	if !ok {
		log.Warn().Msg("decode on unknown handle")
		out.send("", true)
		return
	}
	defer l.Release()
	l.Value().DecodeFromEmbeddings(ctx, data, numTokens, embeddingDim, maxOutputTokens, out.send)
}

// DecodeEmbeddingsSync returns the full decoded text, "" on failure.
func (s *Service) DecodeEmbeddingsSync(ctx context.Context, handle int64, embeddings []float32, numTokens, embeddingDim, maxOutputTokens int) string {
	var sb strings.Builder
	s.DecodeEmbeddings(ctx, handle, embeddings, numTokens, embeddingDim, maxOutputTokens, appendTo(&sb))
	return sb.String()
}

// StopGeneration asks the generation running on handle to end.
func (s *Service) StopGeneration(handle int64) {
	if l, ok := s.handles.Acquire(handle); ok {
		l.Value().StopGeneration()
		l.Release()
	}
}

// FreeModel unregisters handle. The model is unloaded once no call is using
// it; a running generation finishes first. It reports whether handle existed.
func (s *Service) FreeModel(handle int64) bool {
	ok := s.handles.Unregister(handle)
	s.log.Info().Int64("handle", handle).Bool("found", ok).Msg("free model")
	return ok
}

func (s *Service) IsLoaded(handle int64) bool {
	var v bool
	s.with(handle, func(e *engine.Engine) { v = e.IsLoaded() })
	return v
}

func (s *Service) IsGenerating(handle int64) bool {
	var v bool
	s.with(handle, func(e *engine.Engine) { v = e.IsGenerating() })
	return v
}

// EmbeddingDim is the hidden width of the model behind handle, 0 if unknown.
func (s *Service) EmbeddingDim(handle int64) int {
	var v int
	s.with(handle, func(e *engine.Engine) { v = e.EmbeddingDimension() })
	return v
}

func (s *Service) with(handle int64, fn func(*engine.Engine)) {
	if l, ok := s.handles.Acquire(handle); ok {
		fn(l.Value())
		l.Release()
	}
}

// Handles reports every registered handle without waiting on generations.
func (s *Service) Handles() []types.HandleStatus {
	var out []types.HandleStatus
	s.handles.Range(func(id int64, e *engine.Engine) bool {
		st := types.HandleStatus{
			Handle:     id,
			Service:    string(s.kind),
			Loaded:     e.IsLoaded(),
			Generating: e.IsGenerating(),
		}
		if info, ok := e.Info(); ok {
			st.Path = info.Path
			st.EmbeddingDim = info.EmbeddingDim
			st.ContextSize = info.Config.ContextSize
			st.Threads = info.Config.Threads
			st.GPULayers = info.Config.GPULayers
			st.LoadedAt = info.LoadedAt.Unix()
		}
		out = append(out, st)
		return true
	})
	return out
}

// Close stops running generations and frees every handle.
func (s *Service) Close() {
	s.handles.Range(func(_ int64, e *engine.Engine) bool {
		e.StopGeneration()
		return true
	})
	n := s.handles.UnregisterAll()
	s.log.Info().Int("handles", n).Msg("service closed")
}

// copyEmbeddings validates the shape before copying the rows used.
func copyEmbeddings(src []float32, numTokens, dim int) ([]float32, bool) {
	if numTokens <= 0 || dim <= 0 || numTokens > len(src)/dim {
		return nil, false
	}
	n := numTokens * dim
	out := make([]float32, n)
	copy(out, src[:n])
	return out, true
}

func appendTo(sb *strings.Builder) Callback {
	return CallbackFunc(func(fragment string, done bool) error {
		if !done {
			sb.WriteString(fragment)
		}
		return nil
	})
}
