package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"inferbridge/internal/engine"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `
log_level: debug
ops_addr: ":9999"
models_dir: /tmp
asr:
  threads: 6
  max_tokens: 128
preload:
  - service: asr
    path: /m/glm-asr.gguf
    model:
      context_size: 2048
cors:
  enabled: true
  origins: ["http://localhost:5173"]
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.OpsAddr != ":9999" || cfg.ModelsDir != "/tmp" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.ASR.Threads != 6 || cfg.ASR.MaxTokens != 128 {
		t.Fatalf("asr section: %+v", cfg.ASR)
	}
	if len(cfg.Preload) != 1 || cfg.Preload[0].Service != "asr" || cfg.Preload[0].Model.ContextSize != 2048 {
		t.Fatalf("preload: %+v", cfg.Preload)
	}
	if !cfg.CORS.Enabled || len(cfg.CORS.Origins) != 1 {
		t.Fatalf("cors: %+v", cfg.CORS)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"ops_addr":":7070","models_dir":"/m","llm":{"context_size":8192,"gpu_layers":-1,"temperature":0.2}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OpsAddr != ":7070" || cfg.ModelsDir != "/m" || cfg.LLM.ContextSize != 8192 || cfg.LLM.GPULayers != engine.CPUOnly || cfg.LLM.Temperature != 0.2 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "ops_addr=\":8081\"\nmodels_dir=\"/x\"\nlog_format=\"json\"\n\n[llm]\nthreads=3\n\n[[preload]]\nservice=\"llm\"\npath=\"/x/a.gguf\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OpsAddr != ":8081" || cfg.ModelsDir != "/x" || cfg.LogFormat != "json" || cfg.LLM.Threads != 3 || len(cfg.Preload) != 1 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	if _, err := Load(writeTempFile(t, d, "cfg.txt", "not supported")); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	if _, err := Load(filepath.Join(d, "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
	if _, err := Load(writeTempFile(t, d, "bad.json", "{")); err == nil {
		t.Fatalf("expected parse error")
	}
	_, err := Load(writeTempFile(t, d, "svc.yaml", "preload:\n  - service: tts\n    path: /m/x.gguf\n"))
	if err == nil || !strings.Contains(err.Error(), "tts") {
		t.Fatalf("expected unknown service error, got %v", err)
	}
	if _, err := Load(writeTempFile(t, d, "nopath.yaml", "preload:\n  - service: llm\n")); err == nil {
		t.Fatalf("expected empty path error")
	}
	if _, err := Load(writeTempFile(t, d, "fmt.yaml", "log_format: xml\n")); err == nil {
		t.Fatalf("expected log format error")
	}
}

func TestApplyDefaults(t *testing.T) {
	var c Config
	c.ASR.Threads = 2
	c.ApplyDefaults()
	if c.LogLevel != "info" || c.LogFormat != "console" || c.OpsAddr != DefaultOpsAddr || c.ModelsDir != DefaultModelsDir {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if c.LLM != engine.DefaultModelConfig() {
		t.Fatalf("llm defaults %+v", c.LLM)
	}
	if c.ASR.Threads != 2 || c.ASR.MaxTokens != engine.DefaultASRMaxTokens || c.ASR.Temperature != 0 {
		t.Fatalf("asr defaults %+v", c.ASR)
	}
}
