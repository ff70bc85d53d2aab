package engine

const (
	// AllGPULayers offloads every layer to the GPU.
	AllGPULayers = 99
	// CPUOnly keeps every layer on the CPU.
	CPUOnly = -1

	DefaultContextSize  = 4096
	DefaultThreads      = 4
	DefaultTemperature  = 0
	DefaultMaxTokens    = 512
	DefaultASRMaxTokens = 256

	minThreads = 1
	maxThreads = 8
)

// ModelConfig is fixed for the lifetime of a loaded model. Zero fields are
// replaced by defaults when the model is loaded.
type ModelConfig struct {
	ContextSize int `json:"context_size" yaml:"context_size" toml:"context_size"`
	// GPULayers is the number of layers to offload; AllGPULayers for all,
	// CPUOnly for none.
	GPULayers   int     `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	Threads     int     `json:"threads" yaml:"threads" toml:"threads"`
	Temperature float32 `json:"temperature" yaml:"temperature" toml:"temperature"`
	// MaxTokens is used when a generation call passes a non-positive limit.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
}

// DefaultModelConfig returns the defaults for text generation.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		ContextSize: DefaultContextSize,
		GPULayers:   AllGPULayers,
		Threads:     DefaultThreads,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// ASRModelConfig returns the defaults for embedding-conditioned decoding.
func ASRModelConfig() ModelConfig {
	c := DefaultModelConfig()
	c.Temperature = 0
	c.MaxTokens = DefaultASRMaxTokens
	return c
}

// Normalize fills unset fields with defaults and clamps Threads to [1, 8].
func (c ModelConfig) Normalize() ModelConfig {
	if c.ContextSize <= 0 {
		c.ContextSize = DefaultContextSize
	}
	switch {
	case c.GPULayers == 0:
		c.GPULayers = AllGPULayers
	case c.GPULayers < 0:
		c.GPULayers = CPUOnly
	}
	if c.Threads == 0 {
		c.Threads = DefaultThreads
	}
	c.Threads = max(minThreads, min(maxThreads, c.Threads))
	if c.Temperature < 0 {
		c.Temperature = 0
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	return c
}

// offloadLayers is the layer count handed to the backend.
func (c ModelConfig) offloadLayers() int {
	if c.GPULayers < 0 {
		return 0
	}
	return c.GPULayers
}

// WithDefaults returns c with every zero field taken from d.
func (c ModelConfig) WithDefaults(d ModelConfig) ModelConfig {
	if c.ContextSize == 0 {
		c.ContextSize = d.ContextSize
	}
	if c.GPULayers == 0 {
		c.GPULayers = d.GPULayers
	}
	if c.Threads == 0 {
		c.Threads = d.Threads
	}
	if c.Temperature == 0 {
		c.Temperature = d.Temperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = d.MaxTokens
	}
	return c
}
