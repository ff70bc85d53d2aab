//go:build llama

package llm

// Link directives for the in-process llama.cpp runtime.
// - rpath $ORIGIN lets the loader find libllama.so and libggml*.so next to
//   the built binary (./bin).
// - -L${SRCDIR}/../../bin lets the linker find libllama.so at link time.
// - Headers are expected under third_party/llama.cpp.

/*
#cgo CFLAGS: -I${SRCDIR}/../../third_party/llama.cpp/include -I${SRCDIR}/../../third_party/llama.cpp/ggml/include -O2
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
#include <stdlib.h>
#include "llama.h"
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

var (
	runtimeMu   sync.Mutex
	runtimeRefs int
)

type llamaBackend struct{}

// NewLlama returns the llama.cpp backend.
func NewLlama() Backend { return llamaBackend{} }

func (llamaBackend) Init() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if runtimeRefs == 0 {
		C.llama_backend_init()
	}
	runtimeRefs++
	return nil
}

func (llamaBackend) Free() {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if runtimeRefs == 0 {
		return
	}
	runtimeRefs--
	if runtimeRefs == 0 {
		C.llama_backend_free()
	}
}

func (llamaBackend) LoadWeights(path string, p WeightParams) (Weights, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	mp := C.llama_model_default_params()
	mp.n_gpu_layers = C.int32_t(p.GPULayers)
	model := C.llama_model_load_from_file(cpath, mp)
	if model == nil {
		return nil, fmt.Errorf("llm: failed to load model from %q", path)
	}
	return &llamaWeights{
		model: model,
		vocab: C.llama_model_get_vocab(model),
	}, nil
}

type llamaWeights struct {
	model *C.struct_llama_model
	vocab *C.struct_llama_vocab
}

func (w *llamaWeights) NewContext(p ContextParams) (DecodeContext, error) {
	cp := C.llama_context_default_params()
	cp.n_ctx = C.uint32_t(p.ContextSize)
	cp.n_batch = C.uint32_t(p.BatchSize)
	cp.n_threads = C.int32_t(p.Threads)
	cp.n_threads_batch = C.int32_t(p.Threads)
	ctx := C.llama_init_from_model(w.model, cp)
	if ctx == nil {
		return nil, fmt.Errorf("llm: failed to create context (n_ctx=%d)", p.ContextSize)
	}
	return &llamaContext{
		ctx:    ctx,
		nVocab: int(C.llama_vocab_n_tokens(w.vocab)),
	}, nil
}

func (w *llamaWeights) EmbeddingDim() int { return int(C.llama_model_n_embd(w.model)) }

func (w *llamaWeights) Tokenize(text string, addSpecial bool) ([]Token, error) {
	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))

	// Prompts are plain text: control-token strings are not parsed as special tokens.
	n := C.llama_tokenize(w.vocab, ctext, C.int32_t(len(text)), nil, 0, C.bool(addSpecial), C.bool(false))
	if n == 0 {
		return nil, nil
	}
	size := int(n)
	if size < 0 {
		size = -size
	}
	toks := make([]C.llama_token, size)
	n = C.llama_tokenize(w.vocab, ctext, C.int32_t(len(text)), &toks[0], C.int32_t(size), C.bool(addSpecial), C.bool(false))
	if n < 0 {
		return nil, fmt.Errorf("llm: tokenization failed, need %d tokens", -n)
	}
	out := make([]Token, n)
	for i := range out {
		out[i] = Token(toks[i])
	}
	return out, nil
}

func (w *llamaWeights) TokenToPiece(tok Token, buf []byte) int {
	var p *C.char
	if len(buf) > 0 {
		p = (*C.char)(unsafe.Pointer(&buf[0]))
	}
	return int(C.llama_token_to_piece(w.vocab, C.llama_token(tok), p, C.int32_t(len(buf)), 0, C.bool(false)))
}

func (w *llamaWeights) IsEOG(tok Token) bool {
	return bool(C.llama_vocab_is_eog(w.vocab, C.llama_token(tok)))
}

func (w *llamaWeights) Close() error {
	if w.model != nil {
		C.llama_model_free(w.model)
		w.model = nil
		w.vocab = nil
	}
	return nil
}

type llamaContext struct {
	ctx    *C.struct_llama_context
	nVocab int

	// native batch reused across decodes; reallocated when shape changes
	cb     C.struct_llama_batch
	cbCap  int
	cbDim  int
	cbLive bool
}

func (c *llamaContext) ClearMemory() {
	C.llama_memory_clear(C.llama_get_memory(c.ctx), C.bool(true))
}

func (c *llamaContext) ensureBatch(capacity, dim int) {
	if c.cbLive && c.cbCap >= capacity && c.cbDim == dim {
		return
	}
	if c.cbLive {
		C.llama_batch_free(c.cb)
	}
	c.cb = C.llama_batch_init(C.int32_t(capacity), C.int32_t(dim), 1)
	c.cbCap, c.cbDim, c.cbLive = capacity, dim, true
}

func (c *llamaContext) Decode(b *Batch) error {
	n := b.Len()
	if n == 0 {
		return nil
	}
	c.ensureBatch(b.Capacity(), b.Dim())
	cb := &c.cb
	cb.n_tokens = C.int32_t(n)

	pos := unsafe.Slice(cb.pos, c.cbCap)
	nSeq := unsafe.Slice(cb.n_seq_id, c.cbCap)
	seqs := unsafe.Slice(cb.seq_id, c.cbCap)
	logits := unsafe.Slice(cb.logits, c.cbCap)
	if b.IsEmbedding() {
		embd := unsafe.Slice((*float32)(unsafe.Pointer(cb.embd)), c.cbCap*c.cbDim)
		copy(embd, b.embd[:n*b.dim])
	} else {
		toks := unsafe.Slice(cb.token, c.cbCap)
		for i := 0; i < n; i++ {
			toks[i] = C.llama_token(b.tokens[i])
		}
	}
	for i := 0; i < n; i++ {
		pos[i] = C.llama_pos(b.pos[i])
		nSeq[i] = 1
		*seqs[i] = C.llama_seq_id(b.seq[i])
		if b.logits[i] {
			logits[i] = 1
		} else {
			logits[i] = 0
		}
	}

	if rc := int(C.llama_decode(c.ctx, *cb)); rc != 0 {
		return DecodeError{Code: rc}
	}
	return nil
}

func (c *llamaContext) Logits(i int) []float32 {
	p := C.llama_get_logits_ith(c.ctx, C.int32_t(i))
	if p == nil {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(p)), c.nVocab)
}

func (c *llamaContext) Close() error {
	if c.cbLive {
		C.llama_batch_free(c.cb)
		c.cbLive = false
	}
	if c.ctx != nil {
		C.llama_free(c.ctx)
		c.ctx = nil
	}
	return nil
}
