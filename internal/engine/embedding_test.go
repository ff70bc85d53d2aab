package engine

import (
	"strings"
	"testing"
)

func embeddings(n, dim int) []float32 {
	out := make([]float32, n*dim)
	for i := range out {
		out[i] = float32(i) / 10
	}
	return out
}

func TestDecodeFromEmbeddings_Streams(t *testing.T) {
	const n, dim = 5, 8
	b := newFake(dim, 20, 21, 22)
	obs := NewMemoryObserver()
	e := loaded(t, b, WithObserver(obs))

	rec := &recorder{}
	res := e.DecodeFromEmbeddings(testCtx(t), embeddings(n, dim), n, dim, 50, rec.fn)
	rec.assertTerminal(t)
	frags, _, _ := rec.snapshot()
	if strings.Join(frags, "") != "Hello world" || res.Reason != FinishEOG {
		t.Fatalf("frags=%q res=%+v", frags, res)
	}
	seed := b.LastSeed()
	if !seed.Embedding || seed.Len != n || seed.Dim != dim {
		t.Fatalf("seed %+v", seed)
	}
	for i := 0; i < n; i++ {
		if int(seed.Positions[i]) != i || seed.Logits[i] != (i == n-1) {
			t.Fatalf("seed entry %d: pos=%d logits=%v", i, seed.Positions[i], seed.Logits[i])
		}
	}
	if seed.FirstRow[1] != 0.1 || seed.LastRow[0] != float32((n-1)*dim)/10 {
		t.Fatalf("rows not copied in order: first=%v last=%v", seed.FirstRow, seed.LastRow)
	}
	// positions continue after the injected rows
	if e.Position() != n+3 {
		t.Fatalf("pos=%d", e.Position())
	}
	if gs := obs.Generations(); len(gs) != 1 || gs[0].Kind != KindEmbedding {
		t.Fatalf("samples %+v", gs)
	}
}

func TestDecodeFromEmbeddings_DimensionGate(t *testing.T) {
	b := newFake(8, 20)
	e := loaded(t, b)
	rec := &recorder{}
	res := e.DecodeFromEmbeddings(testCtx(t), embeddings(4, 4), 4, 4, 10, rec.fn)
	rec.assertTerminal(t)
	if res.Reason != FinishDimMismatch || b.Decodes() != 0 {
		t.Fatalf("reason=%s decodes=%d", res.Reason, b.Decodes())
	}
}

func TestDecodeFromEmbeddings_InvalidInput(t *testing.T) {
	cases := []struct {
		name      string
		data      []float32
		numTokens int
		dim       int
	}{
		{"undersized", make([]float32, 8*3-1), 3, 8},
		{"zero tokens", make([]float32, 8), 0, 8},
		{"negative tokens", make([]float32, 8), -1, 8},
		{"zero dim", make([]float32, 8), 1, 0},
		{"nil", nil, 1, 8},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := newFake(8, 20)
			e := loaded(t, b)
			rec := &recorder{}
			res := e.DecodeFromEmbeddings(testCtx(t), c.data, c.numTokens, c.dim, 10, rec.fn)
			rec.assertTerminal(t)
			if res.Reason != FinishInvalidInput || b.Decodes() != 0 {
				t.Fatalf("reason=%s decodes=%d", res.Reason, b.Decodes())
			}
		})
	}
}

func TestDecodeFromEmbeddingsSync_MatchesStream(t *testing.T) {
	const n, dim = 6, 8
	b := newFake(dim, 20, 23, 21, 22)
	e := loaded(t, b)
	data := embeddings(n, dim)

	var streamed strings.Builder
	e.DecodeFromEmbeddings(testCtx(t), data, n, dim, 20, func(f string, done bool) {
		if !done {
			streamed.WriteString(f)
		}
	})
	sync := e.DecodeFromEmbeddingsSync(testCtx(t), data, n, dim, 20)
	if sync != streamed.String() || sync != "Hello world" {
		t.Fatalf("sync=%q streamed=%q", sync, streamed.String())
	}
	if e.DecodeFromEmbeddingsSync(testCtx(t), data, n, 4, 20) != "" {
		t.Fatalf("sync output on dimension mismatch")
	}
}

func TestDecodeFromEmbeddings_NotLoaded(t *testing.T) {
	e := New(newFake(8))
	rec := &recorder{}
	if res := e.DecodeFromEmbeddings(testCtx(t), embeddings(2, 8), 2, 8, 10, rec.fn); res.Reason != FinishNotLoaded {
		t.Fatalf("reason=%s", res.Reason)
	}
	rec.assertTerminal(t)
}
