//go:build !llama

package llm

// Builds without the 'llama' tag stay CGO-free. The stub refuses to load
// anything rather than pretending to generate.

type llamaBackend struct{}

// NewLlama returns the llama.cpp backend. In this build it is unavailable.
func NewLlama() Backend { return llamaBackend{} }

func (llamaBackend) Init() error {
	return ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

func (llamaBackend) Free() {}

func (llamaBackend) LoadWeights(path string, p WeightParams) (Weights, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
