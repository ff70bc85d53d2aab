// Package llmtest provides an in-memory llm.Backend for tests. It counts every
// resource it hands out so tests can assert teardown, and drives greedy
// sampling from a fixed token script.
package llmtest

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"inferbridge/internal/llm"
)

const (
	// BOS is prepended by Tokenize when addSpecial is set.
	BOS llm.Token = 1
	// DefaultEOG is the end-of-generation token unless Backend.EOG is set.
	DefaultEOG llm.Token = 2
	// DefaultVocab is the logits width unless Backend.VocabSize is set.
	DefaultVocab = 512
)

// Backend is a fake llm.Backend. Configure fields before first use.
type Backend struct {
	// Dim is the reported embedding width.
	Dim int
	// Script is the sequence of tokens the model "predicts", one per decode.
	// Once exhausted the model predicts EOG, unless Loop is set.
	Script []llm.Token
	Loop   bool
	EOG    llm.Token
	// Pieces maps tokens to text. Unmapped tokens render as "<id>".
	Pieces map[llm.Token]string
	// Broken tokens always report a required size larger than any buffer.
	Broken    map[llm.Token]bool
	VocabSize int

	InitErr     error
	LoadErr     error
	ContextErr  error
	TokenizeErr error
	// FailDecodeAt makes the Nth decode of a context fail (1-based, 0 = never).
	FailDecodeAt int
	DecodeDelay  time.Duration

	inits        atomic.Int64
	frees        atomic.Int64
	liveWeights  atomic.Int64
	liveContexts atomic.Int64
	decodes      atomic.Int64
	clears       atomic.Int64

	mu        sync.Mutex
	loaded    []string
	lastSeed  SeedRecord
	lastParam llm.ContextParams
	lastWP    llm.WeightParams
}

// SeedRecord describes the first decode after a memory clear.
type SeedRecord struct {
	Len       int
	Embedding bool
	Dim       int
	Tokens    []llm.Token
	Positions []llm.Pos
	Logits    []bool
	FirstRow  []float32
	LastRow   []float32
}

var _ llm.Backend = (*Backend)(nil)

func (b *Backend) Init() error {
	if b.InitErr != nil {
		return b.InitErr
	}
	b.inits.Add(1)
	return nil
}

func (b *Backend) Free() { b.frees.Add(1) }

func (b *Backend) LoadWeights(path string, p llm.WeightParams) (llm.Weights, error) {
	if b.LoadErr != nil {
		return nil, b.LoadErr
	}
	if path == "" {
		return nil, errors.New("llmtest: empty model path")
	}
	b.liveWeights.Add(1)
	b.mu.Lock()
	b.loaded = append(b.loaded, path)
	b.lastWP = p
	b.mu.Unlock()
	return &weights{b: b}, nil
}

// RuntimeRefs is Init calls minus Free calls.
func (b *Backend) RuntimeRefs() int64 { return b.inits.Load() - b.frees.Load() }

func (b *Backend) LiveWeights() int64  { return b.liveWeights.Load() }
func (b *Backend) LiveContexts() int64 { return b.liveContexts.Load() }
func (b *Backend) Decodes() int64      { return b.decodes.Load() }
func (b *Backend) Clears() int64       { return b.clears.Load() }

// Loaded lists every path passed to LoadWeights that succeeded.
func (b *Backend) Loaded() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.loaded...)
}

// LastSeed returns the record of the most recent seeding decode.
func (b *Backend) LastSeed() SeedRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSeed
}

// LastContextParams returns the params of the most recent NewContext.
func (b *Backend) LastContextParams() llm.ContextParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastParam
}

// LastWeightParams returns the params of the most recent LoadWeights.
func (b *Backend) LastWeightParams() llm.WeightParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastWP
}

func (b *Backend) eog() llm.Token {
	if b.EOG != 0 {
		return b.EOG
	}
	return DefaultEOG
}

func (b *Backend) vocab() int {
	if b.VocabSize > 0 {
		return b.VocabSize
	}
	return DefaultVocab
}

type weights struct {
	b      *Backend
	closed atomic.Bool
}

func (w *weights) NewContext(p llm.ContextParams) (llm.DecodeContext, error) {
	if w.b.ContextErr != nil {
		return nil, w.b.ContextErr
	}
	w.b.liveContexts.Add(1)
	w.b.mu.Lock()
	w.b.lastParam = p
	w.b.mu.Unlock()
	return &decodeContext{b: w.b, w: w}, nil
}

func (w *weights) EmbeddingDim() int { return w.b.Dim }

// Tokenize maps each whitespace separated word to a token id >= 10.
func (w *weights) Tokenize(text string, addSpecial bool) ([]llm.Token, error) {
	if w.b.TokenizeErr != nil {
		return nil, w.b.TokenizeErr
	}
	var out []llm.Token
	if addSpecial {
		out = append(out, BOS)
	}
	for i := range strings.Fields(text) {
		out = append(out, llm.Token(10+i))
	}
	return out, nil
}

func (w *weights) TokenToPiece(tok llm.Token, buf []byte) int {
	if w.b.Broken[tok] {
		return -(len(buf) + 1)
	}
	piece, ok := w.b.Pieces[tok]
	if !ok {
		piece = fmt.Sprintf("<%d>", tok)
	}
	if len(buf) < len(piece) {
		return -len(piece)
	}
	return copy(buf, piece)
}

func (w *weights) IsEOG(tok llm.Token) bool { return tok == w.b.eog() }

func (w *weights) Close() error {
	if w.closed.Swap(true) {
		return errors.New("llmtest: weights closed twice")
	}
	w.b.liveWeights.Add(-1)
	return nil
}

type decodeContext struct {
	b      *Backend
	w      *weights
	closed atomic.Bool
	// step counts decodes since the last clear; it selects the next prediction
	step    int
	decoded int
	logits  []float32
}

func (c *decodeContext) ClearMemory() {
	c.b.clears.Add(1)
	c.step = 0
	c.logits = nil
}

func (c *decodeContext) Decode(bt *llm.Batch) error {
	if c.w.closed.Load() {
		return errors.New("llmtest: decode after weights closed")
	}
	c.b.decodes.Add(1)
	c.decoded++
	if c.b.DecodeDelay > 0 {
		time.Sleep(c.b.DecodeDelay)
	}
	if c.b.FailDecodeAt > 0 && c.decoded == c.b.FailDecodeAt {
		c.logits = nil
		return llm.DecodeError{Code: -1}
	}
	if c.step == 0 {
		c.record(bt)
	}
	c.logits = c.predict(c.step)
	c.step++
	return nil
}

func (c *decodeContext) record(bt *llm.Batch) {
	rec := SeedRecord{Len: bt.Len(), Embedding: bt.IsEmbedding(), Dim: bt.Dim()}
	for i := 0; i < bt.Len(); i++ {
		if !bt.IsEmbedding() {
			rec.Tokens = append(rec.Tokens, bt.Token(i))
		}
		rec.Positions = append(rec.Positions, bt.Position(i))
		rec.Logits = append(rec.Logits, bt.WantsLogits(i))
	}
	if bt.IsEmbedding() && bt.Len() > 0 {
		rec.FirstRow = append([]float32(nil), bt.Embedding(0)...)
		rec.LastRow = append([]float32(nil), bt.Embedding(bt.Len()-1)...)
	}
	c.b.mu.Lock()
	c.b.lastSeed = rec
	c.b.mu.Unlock()
}

// predict returns one-hot logits for the token the script holds at step.
func (c *decodeContext) predict(step int) []float32 {
	tok := c.b.eog()
	if n := len(c.b.Script); n > 0 {
		switch {
		case step < n:
			tok = c.b.Script[step]
		case c.b.Loop:
			tok = c.b.Script[step%n]
		}
	}
	out := make([]float32, c.b.vocab())
	if int(tok) < len(out) {
		out[tok] = 1
	}
	return out
}

func (c *decodeContext) Logits(i int) []float32 { return c.logits }

func (c *decodeContext) Close() error {
	if c.closed.Swap(true) {
		return errors.New("llmtest: context closed twice")
	}
	if c.w.closed.Load() {
		return errors.New("llmtest: context closed after its weights")
	}
	c.b.liveContexts.Add(-1)
	return nil
}
