package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"inferbridge/internal/llm"
)

// Result summarizes a finished generation call.
type Result struct {
	ID        string
	Reason    FinishReason
	Fragments int
}

// seeder primes a freshly cleared context and reports the next position.
type seeder interface {
	kind() string
	// check validates input against the model width before the engine is
	// acquired. It returns "" when the input is usable.
	check(modelDim int) FinishReason
	seed(w llm.Weights, dctx llm.DecodeContext) (next int, err error)
}

type promptSeed struct{ prompt string }

func (promptSeed) kind() string           { return KindPrompt }
func (promptSeed) check(int) FinishReason { return "" }

func (s promptSeed) seed(w llm.Weights, dctx llm.DecodeContext) (int, error) {
	toks, err := w.Tokenize(s.prompt, true)
	if err != nil {
		return 0, fmt.Errorf("tokenize: %w", err)
	}
	if len(toks) == 0 {
		return 0, fmt.Errorf("tokenize: %w: prompt produced no tokens", ErrInvalidInput)
	}
	b := llm.NewTokenBatch(len(toks))
	for i, t := range toks {
		if err := b.Add(t, llm.Pos(i), 0, i == len(toks)-1); err != nil {
			return 0, err
		}
	}
	if err := dctx.Decode(b); err != nil {
		return 0, fmt.Errorf("prompt decode: %w", err)
	}
	return len(toks), nil
}

type embeddingSeed struct {
	data      []float32
	numTokens int
	dim       int
}

func (embeddingSeed) kind() string { return KindEmbedding }

func (s embeddingSeed) check(modelDim int) FinishReason {
	if s.numTokens <= 0 || s.dim <= 0 {
		return FinishInvalidInput
	}
	if s.numTokens > len(s.data)/s.dim {
		return FinishInvalidInput
	}
	if s.dim != modelDim {
		return FinishDimMismatch
	}
	return ""
}

func (s embeddingSeed) seed(w llm.Weights, dctx llm.DecodeContext) (int, error) {
	b := llm.NewEmbeddingBatch(s.numTokens, s.dim)
	if err := b.InjectEmbeddings(s.data, s.numTokens, 0); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := dctx.Decode(b); err != nil {
		return 0, fmt.Errorf("embedding decode: %w", err)
	}
	return s.numTokens, nil
}

// Generate tokenizes prompt (with the beginning marker), decodes it and
// streams up to maxTokens greedily sampled fragments to onToken. A
// non-positive maxTokens uses the model's configured limit. Sampling is
// greedy; temperature is recorded but does not change the choice.
func (e *Engine) Generate(ctx context.Context, prompt string, maxTokens int, temperature float32, onToken TokenFunc) Result {
	e.log.Debug().Float32("temperature", temperature).Msg("greedy decoding, temperature not applied")
	return e.run(ctx, promptSeed{prompt: prompt}, maxTokens, onToken)
}

// DecodeFromEmbeddings injects numTokens rows of width embeddingDim from
// embeddings in place of a tokenized prompt, then streams like Generate.
// embeddings must hold at least numTokens*embeddingDim values and
// embeddingDim must equal EmbeddingDimension(); otherwise onToken receives
// only ("", true).
func (e *Engine) DecodeFromEmbeddings(ctx context.Context, embeddings []float32, numTokens, embeddingDim, maxOutputTokens int, onToken TokenFunc) Result {
	return e.run(ctx, embeddingSeed{data: embeddings, numTokens: numTokens, dim: embeddingDim}, maxOutputTokens, onToken)
}

// GenerateSync runs Generate and returns the concatenated text.
func (e *Engine) GenerateSync(ctx context.Context, prompt string, maxTokens int, temperature float32) string {
	var sb strings.Builder
	e.Generate(ctx, prompt, maxTokens, temperature, collect(&sb))
	return sb.String()
}

// DecodeFromEmbeddingsSync runs DecodeFromEmbeddings and returns the
// concatenated text, "" on any failure before the first fragment.
func (e *Engine) DecodeFromEmbeddingsSync(ctx context.Context, embeddings []float32, numTokens, embeddingDim, maxOutputTokens int) string {
	var sb strings.Builder
	e.DecodeFromEmbeddings(ctx, embeddings, numTokens, embeddingDim, maxOutputTokens, collect(&sb))
	return sb.String()
}

func collect(sb *strings.Builder) TokenFunc {
	return func(fragment string, done bool) {
		if !done {
			sb.WriteString(fragment)
		}
	}
}

// run is the loop shared by both seeding strategies. onToken receives
// ("", true) exactly once whatever the exit path.
func (e *Engine) run(ctx context.Context, s seeder, maxTokens int, onToken TokenFunc) (res Result) {
	if onToken == nil {
		onToken = func(string, bool) {}
	}
	res.ID = uuid.NewString()
	start := time.Now()
	var firstToken time.Duration
	log := e.log.With().Str("gen_id", res.ID).Str("kind", s.kind()).Logger()
	e.obs.GenerationStarted(GenerationStart{Engine: e.name, ID: res.ID, Kind: s.kind()})

	sentDone := false
	done := func() {
		if !sentDone {
			sentDone = true
			onToken("", true)
		}
	}
	defer func() {
		done()
		e.obs.GenerationFinished(GenerationSample{
			Engine:     e.name,
			ID:         res.ID,
			Kind:       s.kind(),
			Reason:     res.Reason,
			Fragments:  res.Fragments,
			Duration:   time.Since(start),
			FirstToken: firstToken,
		})
		log.Debug().Str("reason", string(res.Reason)).Int("fragments", res.Fragments).Dur("dur", time.Since(start)).Msg("generation finished")
	}()

	if !e.loaded.Load() {
		res.Reason = FinishNotLoaded
		return res
	}
	if r := s.check(e.EmbeddingDimension()); r != "" {
		log.Warn().Str("reason", string(r)).Msg("generation rejected")
		res.Reason = r
		return res
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopRequested.Store(false)
	if !e.loaded.Load() {
		res.Reason = FinishNotLoaded
		return res
	}
	// model may have been swapped while waiting for the lock
	if r := s.check(e.weights.EmbeddingDim()); r != "" {
		res.Reason = r
		return res
	}
	e.generating.Store(true)
	defer e.generating.Store(false)
	// deferred last so it runs first: done is delivered while the engine
	// is still held
	defer done()

	if maxTokens <= 0 {
		maxTokens = e.cfg.MaxTokens
	}
	w, dctx := e.weights, e.dctx
	dctx.ClearMemory()
	next, err := s.seed(w, dctx)
	if err != nil {
		log.Error().Err(err).Msg("seed failed")
		res.Reason = FinishSeedFailed
		return res
	}
	e.pos.Store(int32(next))

	res.Reason, res.Fragments, firstToken = e.loop(ctx, log, w, dctx, next, maxTokens, onToken, start)
	return res
}

func (e *Engine) loop(ctx context.Context, log zerolog.Logger, w llm.Weights, dctx llm.DecodeContext, pos, maxTokens int, onToken TokenFunc, start time.Time) (FinishReason, int, time.Duration) {
	var (
		fragments  int
		firstToken time.Duration
	)
	b := llm.NewTokenBatch(1)
	for i := 0; i < maxTokens; i++ {
		if e.stopRequested.Load() {
			return FinishStopped, fragments, firstToken
		}
		if ctx.Err() != nil {
			return FinishCancelled, fragments, firstToken
		}
		tok := argmax(dctx.Logits(-1))
		if tok < 0 {
			log.Error().Int("pos", pos).Msg("no logits after decode")
			return FinishDecodeError, fragments, firstToken
		}
		if w.IsEOG(tok) {
			return FinishEOG, fragments, firstToken
		}
		if piece := pieceText(w, tok); piece != "" {
			if fragments == 0 {
				firstToken = time.Since(start)
			}
			fragments++
			onToken(piece, false)
		}
		b.Clear()
		if err := b.Add(tok, llm.Pos(pos), 0, true); err != nil {
			log.Error().Err(err).Msg("batch add")
			return FinishDecodeError, fragments, firstToken
		}
		if err := dctx.Decode(b); err != nil {
			log.Error().Err(err).Int("pos", pos).Msg("decode failed")
			return FinishDecodeError, fragments, firstToken
		}
		pos++
		e.pos.Store(int32(pos))
	}
	return FinishLength, fragments, firstToken
}
