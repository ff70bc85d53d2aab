package llm

import (
	"errors"
	"testing"
)

func TestTokenBatch_AddAndCapacity(t *testing.T) {
	b := NewTokenBatch(2)
	if err := b.Add(7, 0, 0, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.Add(8, 1, 0, true); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.Add(9, 2, 0, true); !errors.Is(err, ErrBatchFull) {
		t.Fatalf("expected ErrBatchFull, got %v", err)
	}
	if b.Len() != 2 || b.Token(1) != 8 || b.Position(1) != 1 || !b.WantsLogits(1) || b.WantsLogits(0) {
		t.Fatalf("unexpected batch state: len=%d tok=%d", b.Len(), b.Token(1))
	}
	b.Clear()
	if b.Len() != 0 || b.Capacity() != 2 {
		t.Fatalf("clear: len=%d cap=%d", b.Len(), b.Capacity())
	}
	if err := b.AddEmbedding([]float32{1}, 0, 0, false); err == nil {
		t.Fatalf("expected error adding embedding to token batch")
	}
}

func TestEmbeddingBatch_Inject(t *testing.T) {
	const n, dim = 3, 4
	src := make([]float32, n*dim+5) // trailing values must be ignored
	for i := range src {
		src[i] = float32(i)
	}
	b := NewEmbeddingBatch(n, dim)
	if err := b.InjectEmbeddings(src, n, 0); err != nil {
		t.Fatalf("inject: %v", err)
	}
	if b.Len() != n {
		t.Fatalf("len=%d", b.Len())
	}
	for i := 0; i < n; i++ {
		if b.Position(i) != Pos(i) || b.Seq(i) != 0 {
			t.Fatalf("entry %d: pos=%d seq=%d", i, b.Position(i), b.Seq(i))
		}
		if b.WantsLogits(i) != (i == n-1) {
			t.Fatalf("entry %d: logits flag %v", i, b.WantsLogits(i))
		}
		row := b.Embedding(i)
		if row[0] != float32(i*dim) || row[dim-1] != float32(i*dim+dim-1) {
			t.Fatalf("entry %d: row %v", i, row)
		}
	}
	// source mutation after injection does not leak into the batch
	src[0] = -1
	if b.Embedding(0)[0] != 0 {
		t.Fatalf("batch aliases caller slice")
	}
}

func TestEmbeddingBatch_InjectRejectsShortInput(t *testing.T) {
	b := NewEmbeddingBatch(4, 8)
	if err := b.InjectEmbeddings(make([]float32, 31), 4, 0); err == nil {
		t.Fatalf("expected error for undersized input")
	}
	if err := b.InjectEmbeddings(make([]float32, 64), 5, 0); err == nil {
		t.Fatalf("expected error for rows beyond capacity")
	}
	if err := b.InjectEmbeddings(nil, 0, 0); err == nil {
		t.Fatalf("expected error for zero rows")
	}
	if err := b.Add(1, 0, 0, true); err == nil {
		t.Fatalf("expected error adding token to embedding batch")
	}
}

func TestErrors(t *testing.T) {
	if !IsDecodeError(DecodeError{Code: -1}) {
		t.Fatalf("IsDecodeError false")
	}
	if (DecodeError{Code: 1}).Error() == (DecodeError{Code: -1}).Error() {
		t.Fatalf("expected distinct messages for slot and hard failures")
	}
	if !IsDependencyUnavailable(ErrDependencyUnavailable("x")) {
		t.Fatalf("IsDependencyUnavailable false")
	}
	if IsDependencyUnavailable(errors.New("x")) {
		t.Fatalf("plain error reported as dependency unavailable")
	}
}
