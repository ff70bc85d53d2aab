package types

// Model represents a loadable model file on disk.
type Model struct {
	// Stable identifier for the model (the file name).
	// example: llama-3.2-1b-instruct-q4_k_m.gguf
	ID string `json:"id" example:"llama-3.2-1b-instruct-q4_k_m.gguf"`
	// Human-friendly name.
	// example: llama-3.2-1b-instruct-q4_k_m
	Name string `json:"name" example:"llama-3.2-1b-instruct-q4_k_m"`
	// Absolute path to the model file on disk.
	// example: /data/models/llama-3.2-1b-instruct-q4_k_m.gguf
	Path string `json:"path" example:"/data/models/llama-3.2-1b-instruct-q4_k_m.gguf"`
	// Quantization level parsed from the file name, if any.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
	// File size in bytes.
	// example: 807694464
	SizeBytes int64 `json:"size_bytes" example:"807694464"`
}
