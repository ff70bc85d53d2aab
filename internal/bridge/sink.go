package bridge

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Callback receives generated text on the generating goroutine. done is true
// exactly once, on the final call, with an empty fragment. Errors and panics
// are logged and never reach the generator.
type Callback interface {
	OnToken(fragment string, done bool) error
}

// CallbackFunc adapts a function to Callback.
type CallbackFunc func(fragment string, done bool) error

func (f CallbackFunc) OnToken(fragment string, done bool) error { return f(fragment, done) }

// Releaser is implemented by callbacks that hold a caller-side resource. The
// sink calls Release once, after the terminal delivery.
type Releaser interface {
	Release()
}

// sink forwards engine output to one Callback. It keeps its own reference
// to the callback for the whole stream and drops it after done.
type sink struct {
	target   Callback
	attacher Attacher
	log      zerolog.Logger
}

func newSink(cb Callback, a Attacher, log zerolog.Logger) *sink {
	if a == nil {
		a = NoopAttacher{}
	}
	return &sink{target: cb, attacher: a, log: log}
}

// send delivers one (fragment, done) pair. It is the engine's TokenFunc.
func (s *sink) send(fragment string, done bool) {
	if s.target == nil {
		return
	}
	if done {
		defer s.release()
	}
	attached, err := s.attacher.Attach()
	if err != nil && done {
		// the terminal delivery gets one more attempt
		attached, err = s.attacher.Attach()
	}
	if err != nil {
		s.log.Warn().Err(err).Bool("done", done).Msg("callback attach failed; dropping fragment")
		return
	}
	if attached {
		defer s.attacher.Detach()
	}
	s.deliver(fragment, done)
}

func (s *sink) deliver(fragment string, done bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("panic", fmt.Sprint(r)).Bool("done", done).Msg("callback panicked")
		}
	}()
	if err := s.target.OnToken(fragment, done); err != nil {
		s.log.Warn().Err(err).Bool("done", done).Msg("callback returned error")
	}
}

func (s *sink) release() {
	if r, ok := s.target.(Releaser); ok {
		func() {
			defer func() {
				if p := recover(); p != nil {
					s.log.Error().Str("panic", fmt.Sprint(p)).Msg("callback release panicked")
				}
			}()
			r.Release()
		}()
	}
	s.target = nil
}
