package llm

import "fmt"

// Batch is the input of one Decode call. It carries either token ids or
// embedding vectors, never both, with one position, sequence id and logits
// flag per entry. Capacity is fixed at construction.
type Batch struct {
	tokens []Token
	embd   []float32
	dim    int
	pos    []Pos
	seq    []SeqID
	logits []bool
	n      int
}

// NewTokenBatch returns a batch holding up to capacity token ids.
func NewTokenBatch(capacity int) *Batch {
	if capacity < 1 {
		capacity = 1
	}
	return &Batch{
		tokens: make([]Token, capacity),
		pos:    make([]Pos, capacity),
		seq:    make([]SeqID, capacity),
		logits: make([]bool, capacity),
	}
}

// NewEmbeddingBatch returns a batch holding up to capacity vectors of width dim.
func NewEmbeddingBatch(capacity, dim int) *Batch {
	if capacity < 1 {
		capacity = 1
	}
	if dim < 1 {
		dim = 1
	}
	return &Batch{
		embd:   make([]float32, capacity*dim),
		dim:    dim,
		pos:    make([]Pos, capacity),
		seq:    make([]SeqID, capacity),
		logits: make([]bool, capacity),
	}
}

func (b *Batch) Len() int          { return b.n }
func (b *Batch) Capacity() int     { return len(b.pos) }
func (b *Batch) IsEmbedding() bool { return b.embd != nil }

// Dim is the embedding width, 0 for token batches.
func (b *Batch) Dim() int { return b.dim }

// Clear resets the entry count. Capacity and storage are kept.
func (b *Batch) Clear() { b.n = 0 }

// Add appends a token entry.
func (b *Batch) Add(tok Token, pos Pos, seq SeqID, wantLogits bool) error {
	if b.IsEmbedding() {
		return fmt.Errorf("llm: token added to embedding batch")
	}
	if b.n >= len(b.pos) {
		return ErrBatchFull
	}
	b.tokens[b.n] = tok
	b.set(pos, seq, wantLogits)
	return nil
}

// AddEmbedding appends one vector; len(vec) must equal Dim.
func (b *Batch) AddEmbedding(vec []float32, pos Pos, seq SeqID, wantLogits bool) error {
	if !b.IsEmbedding() {
		return fmt.Errorf("llm: embedding added to token batch")
	}
	if len(vec) != b.dim {
		return fmt.Errorf("llm: embedding width %d, batch width %d", len(vec), b.dim)
	}
	if b.n >= len(b.pos) {
		return ErrBatchFull
	}
	copy(b.embd[b.n*b.dim:(b.n+1)*b.dim], vec)
	b.set(pos, seq, wantLogits)
	return nil
}

func (b *Batch) set(pos Pos, seq SeqID, wantLogits bool) {
	b.pos[b.n] = pos
	b.seq[b.n] = seq
	b.logits[b.n] = wantLogits
	b.n++
}

// InjectEmbeddings replaces the batch contents with nTokens rows of src, at
// positions 0..nTokens-1 on seq. Only the final row requests logits. src must
// hold at least nTokens*Dim values; nothing past that is read.
func (b *Batch) InjectEmbeddings(src []float32, nTokens int, seq SeqID) error {
	if !b.IsEmbedding() {
		return fmt.Errorf("llm: inject into token batch")
	}
	if nTokens <= 0 || nTokens > len(b.pos) {
		return fmt.Errorf("llm: inject %d rows into batch of capacity %d", nTokens, len(b.pos))
	}
	need := nTokens * b.dim
	if len(src) < need {
		return fmt.Errorf("llm: embedding input holds %d values, need %d", len(src), need)
	}
	b.n = 0
	copy(b.embd[:need], src[:need])
	for i := 0; i < nTokens; i++ {
		b.set(Pos(i), seq, i == nTokens-1)
	}
	return nil
}

// Token returns the token id of entry i.
func (b *Batch) Token(i int) Token { return b.tokens[i] }

// Embedding returns the vector of entry i. The slice aliases batch storage.
func (b *Batch) Embedding(i int) []float32 { return b.embd[i*b.dim : (i+1)*b.dim] }

func (b *Batch) Position(i int) Pos     { return b.pos[i] }
func (b *Batch) Seq(i int) SeqID        { return b.seq[i] }
func (b *Batch) WantsLogits(i int) bool { return b.logits[i] }
