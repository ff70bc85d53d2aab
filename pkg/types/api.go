package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: not found
	Error string `json:"error" example:"not found"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// HandleStatus summarizes one registered model handle.
type HandleStatus struct {
	// Opaque handle id.
	// example: 1
	Handle int64 `json:"handle" example:"1"`
	// Service that owns the handle (llm or asr).
	// example: asr
	Service string `json:"service" example:"asr"`
	// Path of the loaded model, empty when unloaded.
	// example: /data/models/glm-asr-nano.gguf
	Path string `json:"path,omitempty" example:"/data/models/glm-asr-nano.gguf"`
	// Whether the handle currently holds a model.
	// example: true
	Loaded bool `json:"loaded" example:"true"`
	// Whether a generation is running.
	// example: false
	Generating bool `json:"generating" example:"false"`
	// Model hidden width.
	// example: 2048
	EmbeddingDim int `json:"embedding_dim" example:"2048"`
	// Context size in tokens.
	// example: 4096
	ContextSize int `json:"context_size" example:"4096"`
	// Threads used for decode.
	// example: 4
	Threads int `json:"threads" example:"4"`
	// Layers offloaded to the GPU (99 = all, -1 = none).
	// example: 99
	GPULayers int `json:"gpu_layers" example:"99"`
	// Load time (unix seconds).
	// example: 1700000000
	LoadedAt int64 `json:"loaded_at_unix,omitempty" example:"1700000000"`
}

// HostInfo reports the runtime platform.
type HostInfo struct {
	// example: linux
	OS string `json:"os" example:"linux"`
	// example: arm64
	Arch string `json:"arch" example:"arm64"`
	// example: 8
	NumCPU int `json:"num_cpu" example:"8"`
	// CPU features relevant to quantized matmul kernels.
	// example: ["asimd","fp16"]
	CPUFeatures []string `json:"cpu_features" example:"asimd,fp16"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Registered handles across all services.
	Handles []HandleStatus `json:"handles"`
	// Host platform.
	Host HostInfo `json:"host"`
	// Number of generations currently running.
	// example: 1
	Generating int `json:"generating" example:"1"`
	// Uptime of the process in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Overall state (loading or ready).
	// example: ready
	State string `json:"state" example:"ready"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// Model files found in the models directory.
	Models []Model `json:"models"`
}
