package bridge

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"inferbridge/internal/engine"
	"inferbridge/internal/llm"
	"inferbridge/internal/llm/llmtest"
)

type chanCallback struct {
	mu    sync.Mutex
	frags []string
	dones int
	done  chan struct{}
}

func newChanCallback() *chanCallback { return &chanCallback{done: make(chan struct{})} }

func (c *chanCallback) OnToken(fragment string, done bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if done {
		c.dones++
		if c.dones == 1 {
			close(c.done)
		}
		return nil
	}
	c.frags = append(c.frags, fragment)
	return nil
}

func (c *chanCallback) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frags)
}

func (c *chanCallback) text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.frags, "")
}

func fakeBackend(dim int, script ...llm.Token) *llmtest.Backend {
	return &llmtest.Backend{
		Dim:    dim,
		Script: script,
		Pieces: map[llm.Token]string{20: "Hel", 21: "lo", 22: " world"},
	}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestService_LoadGenerateFree(t *testing.T) {
	b := fakeBackend(8, 20, 21, 22)
	s := New(KindLLM, b)
	h := s.LoadModel("/m/a.gguf", engine.ModelConfig{})
	if h == InvalidHandle {
		t.Fatalf("load failed")
	}
	if !s.IsLoaded(h) || s.IsGenerating(h) || s.EmbeddingDim(h) != 8 {
		t.Fatalf("loaded=%v generating=%v dim=%d", s.IsLoaded(h), s.IsGenerating(h), s.EmbeddingDim(h))
	}
	cb := newChanCallback()
	s.StartGeneration(testCtx(t), h, "hi", 10, 0.7, cb)
	if cb.text() != "Hello world" || cb.dones != 1 {
		t.Fatalf("text=%q dones=%d", cb.text(), cb.dones)
	}
	if got := s.GenerateSync(testCtx(t), h, "hi", 10, 0); got != "Hello world" {
		t.Fatalf("sync=%q", got)
	}
	if !s.FreeModel(h) || s.FreeModel(h) {
		t.Fatalf("free should succeed once")
	}
	if s.IsLoaded(h) || s.EmbeddingDim(h) != 0 || b.LiveWeights() != 0 || b.RuntimeRefs() != 0 {
		t.Fatalf("model survived free")
	}
}

func TestService_LoadFailureReturnsInvalidHandle(t *testing.T) {
	b := fakeBackend(8)
	b.ContextErr = context.DeadlineExceeded
	s := New(KindLLM, b)
	if h := s.LoadModel("/m/a.gguf", engine.ModelConfig{}); h != InvalidHandle {
		t.Fatalf("handle=%d", h)
	}
	if len(s.Handles()) != 0 || b.LiveWeights() != 0 {
		t.Fatalf("failed load left state behind")
	}
}

func TestService_UnknownHandle(t *testing.T) {
	s := New(KindLLM, fakeBackend(8, 20))
	cb := newChanCallback()
	s.StartGeneration(testCtx(t), 42, "hi", 10, 0, cb)
	if cb.dones != 1 || cb.count() != 0 {
		t.Fatalf("dones=%d frags=%d", cb.dones, cb.count())
	}
	cb2 := newChanCallback()
	s.DecodeEmbeddings(testCtx(t), 42, make([]float32, 16), 2, 8, 10, cb2)
	if cb2.dones != 1 || cb2.count() != 0 {
		t.Fatalf("dones=%d frags=%d", cb2.dones, cb2.count())
	}
	if s.IsLoaded(42) || s.IsGenerating(42) || s.EmbeddingDim(42) != 0 || s.GenerateSync(testCtx(t), 42, "x", 1, 0) != "" {
		t.Fatalf("unknown handle reported state")
	}
	s.StopGeneration(42)
}

func TestService_ASRDefaults(t *testing.T) {
	b := fakeBackend(8)
	s := New(KindASR, b)
	h := s.LoadModel("/m/asr.gguf", engine.ModelConfig{Threads: 2})
	defer s.FreeModel(h)
	st := s.Handles()
	if len(st) != 1 || st[0].Service != "asr" || st[0].Threads != 2 || st[0].ContextSize != 4096 || st[0].Path != "/m/asr.gguf" {
		t.Fatalf("status %+v", st)
	}
}

func TestService_DecodeEmbeddingsCopiesInput(t *testing.T) {
	const n, dim = 3, 8
	b := fakeBackend(dim, 20, 21)
	s := New(KindASR, b)
	h := s.LoadModel("/m/asr.gguf", engine.ModelConfig{})
	defer s.FreeModel(h)

	data := make([]float32, n*dim+4)
	for i := range data {
		data[i] = 1
	}
	got := s.DecodeEmbeddingsSync(testCtx(t), h, data, n, dim, 10)
	if got != "Hello" {
		t.Fatalf("got %q", got)
	}
	seed := b.LastSeed()
	if seed.Len != n || seed.FirstRow[0] != 1 {
		t.Fatalf("seed %+v", seed)
	}
	if s.DecodeEmbeddingsSync(testCtx(t), h, data[:n*dim-1], n, dim, 10) != "" {
		t.Fatalf("undersized input produced text")
	}
	if s.DecodeEmbeddingsSync(testCtx(t), h, data, n, 4, 10) != "" {
		t.Fatalf("mismatched width produced text")
	}
}

func TestCopyEmbeddings(t *testing.T) {
	src := []float32{1, 2, 3, 4, 5, 6, 7}
	out, ok := copyEmbeddings(src, 3, 2)
	if !ok || len(out) != 6 || out[5] != 6 {
		t.Fatalf("out=%v ok=%v", out, ok)
	}
	src[0] = 9
	if out[0] != 1 {
		t.Fatalf("copy aliases source")
	}
	for _, c := range [][2]int{{4, 2}, {0, 2}, {1, 0}, {-1, 2}, {1 << 30, 4}} {
		if _, ok := copyEmbeddings(src, c[0], c[1]); ok {
			t.Fatalf("accepted shape %v", c)
		}
	}
}

// Freeing a handle mid-generation must not release the model under the
// running call; the last reference unloads it.
func TestService_FreeDuringGeneration(t *testing.T) {
	b := fakeBackend(8, 20, 21)
	b.Loop = true
	b.DecodeDelay = time.Millisecond
	s := New(KindLLM, b)
	h := s.LoadModel("/m/a.gguf", engine.ModelConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cb := newChanCallback()
	go s.StartGeneration(ctx, h, "hi", 100000, 0, cb)
	waitFor(t, func() bool { return cb.count() > 2 })

	if !s.FreeModel(h) {
		t.Fatalf("free failed")
	}
	if s.IsLoaded(h) {
		t.Fatalf("freed handle still resolvable")
	}
	if b.LiveWeights() != 1 {
		t.Fatalf("model released under running generation")
	}
	n := cb.count()
	waitFor(t, func() bool { return cb.count() > n })

	cancel()
	select {
	case <-cb.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("generation did not end after cancel")
	}
	waitFor(t, func() bool { return b.LiveWeights() == 0 && b.LiveContexts() == 0 })
	if b.RuntimeRefs() != 0 {
		t.Fatalf("runtime refs=%d", b.RuntimeRefs())
	}
}

func TestService_CloseStopsAndFrees(t *testing.T) {
	b := fakeBackend(8, 20)
	b.Loop = true
	b.DecodeDelay = time.Millisecond
	s := New(KindLLM, b)
	h1 := s.LoadModel("/m/a.gguf", engine.ModelConfig{})
	s.LoadModel("/m/b.gguf", engine.ModelConfig{})

	cb := newChanCallback()
	go s.StartGeneration(testCtx(t), h1, "hi", 100000, 0, cb)
	waitFor(t, func() bool { return cb.count() > 0 })
	s.Close()
	select {
	case <-cb.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("close did not stop generation")
	}
	waitFor(t, func() bool { return b.LiveWeights() == 0 })
	if len(s.Handles()) != 0 {
		t.Fatalf("handles remain after close")
	}
}
