package engine

import "sync"

// MemoryObserver stores samples in memory for tests.
type MemoryObserver struct {
	mu          sync.Mutex
	loads       []LoadSample
	starts      []GenerationStart
	generations []GenerationSample
}

func NewMemoryObserver() *MemoryObserver { return &MemoryObserver{} }

func (o *MemoryObserver) LoadFinished(s LoadSample) {
	o.mu.Lock()
	o.loads = append(o.loads, s)
	o.mu.Unlock()
}

func (o *MemoryObserver) GenerationStarted(s GenerationStart) {
	o.mu.Lock()
	o.starts = append(o.starts, s)
	o.mu.Unlock()
}

func (o *MemoryObserver) GenerationFinished(s GenerationSample) {
	o.mu.Lock()
	o.generations = append(o.generations, s)
	o.mu.Unlock()
}

func (o *MemoryObserver) Loads() []LoadSample {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]LoadSample, len(o.loads))
	copy(out, o.loads)
	return out
}

func (o *MemoryObserver) Starts() []GenerationStart {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]GenerationStart, len(o.starts))
	copy(out, o.starts)
	return out
}

func (o *MemoryObserver) Generations() []GenerationSample {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]GenerationSample, len(o.generations))
	copy(out, o.generations)
	return out
}
