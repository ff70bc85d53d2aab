package bridge

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type recordingCallback struct {
	calls    []string
	dones    int
	released int
	err      error
	panicOn  string
}

func (c *recordingCallback) OnToken(fragment string, done bool) error {
	if c.panicOn != "" && fragment == c.panicOn {
		panic("boom")
	}
	if done {
		c.dones++
	} else {
		c.calls = append(c.calls, fragment)
	}
	return c.err
}

func (c *recordingCallback) Release() { c.released++ }

type countingAttacher struct {
	attachResult bool
	err          error
	// failFirst makes only the first Attach call fail with err.
	failFirst bool
	attaches  int
	detaches  int
}

func (a *countingAttacher) Attach() (bool, error) {
	a.attaches++
	if a.failFirst && a.attaches > 1 {
		return a.attachResult, nil
	}
	return a.attachResult, a.err
}

func (a *countingAttacher) Detach() { a.detaches++ }

func TestSink_DeliversAndReleasesAfterDone(t *testing.T) {
	cb := &recordingCallback{}
	s := newSink(cb, nil, zerolog.Nop())
	s.send("a", false)
	s.send("b", false)
	if cb.released != 0 {
		t.Fatalf("released before done")
	}
	s.send("", true)
	if len(cb.calls) != 2 || cb.dones != 1 || cb.released != 1 {
		t.Fatalf("calls=%v dones=%d released=%d", cb.calls, cb.dones, cb.released)
	}
	s.send("late", false)
	s.send("", true)
	if len(cb.calls) != 2 || cb.dones != 1 || cb.released != 1 {
		t.Fatalf("delivery after release: calls=%v dones=%d", cb.calls, cb.dones)
	}
}

func TestSink_SwallowsErrorsAndPanics(t *testing.T) {
	cb := &recordingCallback{err: errors.New("sink full"), panicOn: "bad"}
	s := newSink(cb, nil, zerolog.Nop())
	s.send("ok", false)
	s.send("bad", false) // must not propagate
	s.send("ok2", false)
	s.send("", true)
	if len(cb.calls) != 2 || cb.dones != 1 || cb.released != 1 {
		t.Fatalf("calls=%v dones=%d released=%d", cb.calls, cb.dones, cb.released)
	}
}

func TestSink_AttachDetachScopedPerCall(t *testing.T) {
	cb := &recordingCallback{}
	a := &countingAttacher{attachResult: true}
	s := newSink(cb, a, zerolog.Nop())
	s.send("x", false)
	s.send("", true)
	if a.attaches != 2 || a.detaches != 2 {
		t.Fatalf("attaches=%d detaches=%d", a.attaches, a.detaches)
	}

	// already attached: no detach
	a2 := &countingAttacher{attachResult: false}
	s2 := newSink(&recordingCallback{}, a2, zerolog.Nop())
	s2.send("x", false)
	s2.send("", true)
	if a2.attaches != 2 || a2.detaches != 0 {
		t.Fatalf("attaches=%d detaches=%d", a2.attaches, a2.detaches)
	}
}

func TestSink_AttachFailureStillReleases(t *testing.T) {
	cb := &recordingCallback{}
	a := &countingAttacher{err: errors.New("no vm")}
	s := newSink(cb, a, zerolog.Nop())
	s.send("x", false)
	s.send("", true)
	if len(cb.calls) != 0 || cb.dones != 0 || cb.released != 1 || a.detaches != 0 {
		t.Fatalf("calls=%v dones=%d released=%d detaches=%d", cb.calls, cb.dones, cb.released, a.detaches)
	}
}

func TestSink_DoneRetriesAttachOnce(t *testing.T) {
	cb := &recordingCallback{}
	a := &countingAttacher{attachResult: true, err: errors.New("transient"), failFirst: true}
	s := newSink(cb, a, zerolog.Nop())
	s.send("", true)
	if cb.dones != 1 || cb.released != 1 {
		t.Fatalf("dones=%d released=%d", cb.dones, cb.released)
	}
	if a.attaches != 2 || a.detaches != 1 {
		t.Fatalf("attaches=%d detaches=%d", a.attaches, a.detaches)
	}
}

func TestSink_FragmentAttachFailureNotRetried(t *testing.T) {
	cb := &recordingCallback{}
	a := &countingAttacher{attachResult: true, err: errors.New("transient"), failFirst: true}
	s := newSink(cb, a, zerolog.Nop())
	s.send("x", false)
	if len(cb.calls) != 0 || a.attaches != 1 {
		t.Fatalf("calls=%v attaches=%d", cb.calls, a.attaches)
	}
}

func TestSink_NilCallback(t *testing.T) {
	s := newSink(nil, nil, zerolog.Nop())
	s.send("x", false)
	s.send("", true)
}

func TestOSThreadAttacher(t *testing.T) {
	var a OSThreadAttacher
	attached, err := a.Attach()
	if !attached || err != nil {
		t.Fatalf("attach=%v err=%v", attached, err)
	}
	a.Detach()
	if attached, _ := (NoopAttacher{}).Attach(); attached {
		t.Fatalf("noop attacher reported attach")
	}
}
