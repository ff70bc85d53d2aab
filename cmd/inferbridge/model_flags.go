package main

import (
	"github.com/spf13/pflag"

	"inferbridge/internal/engine"
)

// modelFlags are the load and generation knobs shared by generate and
// transcribe. Zero values fall back to the config file.
type modelFlags struct {
	model       string
	contextSize int
	threads     int
	gpuLayers   int
	cpuOnly     bool
	maxTokens   int
	temperature float32
}

func (f *modelFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.model, "model", "m", "", "Model file path or name in the models dir")
	fs.IntVar(&f.contextSize, "ctx-size", 0, "Context size in tokens (default from config)")
	fs.IntVar(&f.threads, "threads", 0, "Decode threads, clamped to 1..8 (default from config)")
	fs.IntVar(&f.gpuLayers, "gpu-layers", 0, "Layers to offload to the GPU (default all)")
	fs.BoolVar(&f.cpuOnly, "cpu", false, "Keep every layer on the CPU")
	fs.IntVarP(&f.maxTokens, "max-tokens", "n", 0, "Maximum tokens to generate (default from config)")
	fs.Float32Var(&f.temperature, "temperature", 0, "Accepted for compatibility; decoding is greedy")
}

// config overlays the flags on base.
func (f *modelFlags) config(base engine.ModelConfig) engine.ModelConfig {
	c := base
	if f.contextSize > 0 {
		c.ContextSize = f.contextSize
	}
	if f.threads > 0 {
		c.Threads = f.threads
	}
	if f.gpuLayers > 0 {
		c.GPULayers = f.gpuLayers
	}
	if f.cpuOnly {
		c.GPULayers = engine.CPUOnly
	}
	if f.maxTokens > 0 {
		c.MaxTokens = f.maxTokens
	}
	if f.temperature > 0 {
		c.Temperature = f.temperature
	}
	return c
}
