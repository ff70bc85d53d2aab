package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"inferbridge/internal/engine"
)

// Config holds runtime parameters for the process.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
	// OpsAddr is the listen address of the status and metrics endpoints.
	OpsAddr   string `json:"ops_addr" yaml:"ops_addr" toml:"ops_addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`

	// Per-service model defaults.
	LLM engine.ModelConfig `json:"llm" yaml:"llm" toml:"llm"`
	ASR engine.ModelConfig `json:"asr" yaml:"asr" toml:"asr"`

	Preload []Preload  `json:"preload" yaml:"preload" toml:"preload"`
	CORS    CORSConfig `json:"cors" yaml:"cors" toml:"cors"`
}

// Preload names a model loaded at startup by serve.
type Preload struct {
	// Service is "llm" or "asr".
	Service string             `json:"service" yaml:"service" toml:"service"`
	Path    string             `json:"path" yaml:"path" toml:"path"`
	Model   engine.ModelConfig `json:"model" yaml:"model" toml:"model"`
}

// CORSConfig enables CORS on the ops endpoints.
type CORSConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
	DefaultOpsAddr   = "127.0.0.1:9464"
	DefaultModelsDir = "~/models/llm"
)

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.OpsAddr == "" {
		c.OpsAddr = DefaultOpsAddr
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	c.LLM = c.LLM.WithDefaults(engine.DefaultModelConfig())
	c.ASR = c.ASR.WithDefaults(engine.ASRModelConfig())
}

// Validate checks fields that have no sensible default.
func (c Config) Validate() error {
	for i, p := range c.Preload {
		switch p.Service {
		case "llm", "asr":
		default:
			return fmt.Errorf("preload[%d]: unknown service %q (want llm or asr)", i, p.Service)
		}
		if strings.TrimSpace(p.Path) == "" {
			return fmt.Errorf("preload[%d]: empty path", i)
		}
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "console":
	default:
		return fmt.Errorf("unsupported log_format %q", c.LogFormat)
	}
	return nil
}
