package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"inferbridge/internal/llm"
	"inferbridge/internal/llm/llmtest"
)

// recorder collects TokenFunc calls.
type recorder struct {
	mu        sync.Mutex
	fragments []string
	dones     int
	afterDone int
}

func (r *recorder) fn(fragment string, done bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dones > 0 {
		r.afterDone++
	}
	if done {
		r.dones++
		return
	}
	r.fragments = append(r.fragments, fragment)
}

func (r *recorder) snapshot() ([]string, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fragments...), r.dones, r.afterDone
}

// assertTerminal fails unless exactly one done was delivered, last.
func (r *recorder) assertTerminal(t *testing.T) {
	t.Helper()
	_, dones, after := r.snapshot()
	if dones != 1 || after != 0 {
		t.Fatalf("expected exactly one trailing done, got dones=%d callsAfterDone=%d", dones, after)
	}
}

func newFake(dim int, script ...llm.Token) *llmtest.Backend {
	return &llmtest.Backend{
		Dim:    dim,
		Script: script,
		Pieces: map[llm.Token]string{
			20: "Hel",
			21: "lo",
			22: " world",
			23: "",
		},
	}
}

func loaded(t *testing.T, b llm.Backend, opts ...Option) *Engine {
	t.Helper()
	e := New(b, opts...)
	if err := e.Load("/models/fake.gguf", ModelConfig{}); err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(e.Unload)
	return e
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func testCtxCancel(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	c, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return c, cancel
}
