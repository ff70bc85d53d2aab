package registry

import (
	"io"
	"sort"
	"sync"
	"sync/atomic"
)

// Handles maps opaque int64 ids to reference-counted objects. The table owns
// one reference per registered object; each Lease owns another. Close runs
// exactly once, from whichever reference is dropped last, so unregistering an
// id never invalidates a lease already handed out.
type Handles[T io.Closer] struct {
	mu      sync.Mutex
	entries map[int64]*entry[T]
	next    atomic.Int64

	// OnClose, when set, observes every Close result. Set it before use.
	OnClose func(id int64, err error)
}

type entry[T io.Closer] struct {
	val  T
	refs atomic.Int64
}

// NewHandles returns an empty table. Ids start at 1; 0 is never issued.
func NewHandles[T io.Closer]() *Handles[T] {
	return &Handles[T]{entries: make(map[int64]*entry[T])}
}

// Register stores v and returns its id.
func (h *Handles[T]) Register(v T) int64 {
	e := &entry[T]{val: v}
	e.refs.Store(1)
	id := h.next.Add(1)
	h.mu.Lock()
	h.entries[id] = e
	h.mu.Unlock()
	return id
}

// Acquire returns a lease on id. The map lock is held only while the
// reference is taken.
func (h *Handles[T]) Acquire(id int64) (*Lease[T], bool) {
	h.mu.Lock()
	e, ok := h.entries[id]
	if ok {
		e.refs.Add(1)
	}
	h.mu.Unlock()
	if !ok {
		return nil, false
	}
	return &Lease[T]{h: h, id: id, e: e}, true
}

// Unregister removes id and drops the table's reference. It reports whether
// id was present.
func (h *Handles[T]) Unregister(id int64) bool {
	h.mu.Lock()
	e, ok := h.entries[id]
	delete(h.entries, id)
	h.mu.Unlock()
	if !ok {
		return false
	}
	h.release(id, e)
	return true
}

// UnregisterAll removes every id.
func (h *Handles[T]) UnregisterAll() int {
	h.mu.Lock()
	old := h.entries
	h.entries = make(map[int64]*entry[T])
	h.mu.Unlock()
	for id, e := range old {
		h.release(id, e)
	}
	return len(old)
}

func (h *Handles[T]) release(id int64, e *entry[T]) {
	if e.refs.Add(-1) != 0 {
		return
	}
	err := e.val.Close()
	if h.OnClose != nil {
		h.OnClose(id, err)
	}
}

// Len is the number of registered ids.
func (h *Handles[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// IDs returns the registered ids in ascending order.
func (h *Handles[T]) IDs() []int64 {
	h.mu.Lock()
	ids := make([]int64, 0, len(h.entries))
	for id := range h.entries {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Range calls fn for each registered id in ascending order while holding a
// lease on it. It stops when fn returns false.
func (h *Handles[T]) Range(fn func(id int64, v T) bool) {
	for _, id := range h.IDs() {
		l, ok := h.Acquire(id)
		if !ok {
			continue
		}
		cont := fn(id, l.Value())
		l.Release()
		if !cont {
			return
		}
	}
}

// Lease is a counted reference to a registered object.
type Lease[T io.Closer] struct {
	h    *Handles[T]
	id   int64
	e    *entry[T]
	once sync.Once
}

func (l *Lease[T]) ID() int64 { return l.id }
func (l *Lease[T]) Value() T  { return l.e.val }

// Release drops the lease. Calling it more than once has no further effect.
func (l *Lease[T]) Release() {
	l.once.Do(func() { l.h.release(l.id, l.e) })
}
