package llm

// Token is a vocabulary id.
type Token int32

// Pos is a position in a decode sequence.
type Pos int32

// SeqID identifies a sequence inside a decode context.
type SeqID int32

// WeightParams configures weight loading.
type WeightParams struct {
	// GPULayers is the number of layers to offload. 0 keeps everything on the CPU.
	GPULayers int
}

// ContextParams configures a decode context.
type ContextParams struct {
	ContextSize int
	// BatchSize is the largest batch a single Decode accepts.
	BatchSize int
	Threads   int
}

// Backend is the native inference runtime. Init and Free bracket every set of
// weights loaded from it; implementations reference-count the shared runtime
// so one caller's Free never tears it down under another.
type Backend interface {
	Init() error
	Free()
	LoadWeights(path string, p WeightParams) (Weights, error)
}

// Weights is a loaded model. A DecodeContext created from it must be closed
// before the weights are.
type Weights interface {
	NewContext(p ContextParams) (DecodeContext, error)
	// EmbeddingDim is the model hidden width.
	EmbeddingDim() int
	Tokenize(text string, addSpecial bool) ([]Token, error)
	// TokenToPiece writes the text of tok into buf and returns the byte count.
	// A negative return is the buffer size required.
	TokenToPiece(tok Token, buf []byte) int
	IsEOG(tok Token) bool
	Close() error
}

// DecodeContext holds the attention memory for one sequence of decodes.
type DecodeContext interface {
	ClearMemory()
	Decode(b *Batch) error
	// Logits returns the scores produced for batch entry i by the last Decode.
	// i == -1 selects the last entry that requested logits. Nil when none.
	Logits(i int) []float32
	Close() error
}
