package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inferbridge/internal/bridge"
)

// stopper is the part of bridge.Service that stream needs.
type stopper interface {
	StopGeneration(handle int64)
}

// stream runs one generation, writing fragments to w as they arrive. An
// interrupt or a failed write stops the generation; the fragments already
// written stay on w.
func stream(ctx context.Context, svc stopper, handle int64, w io.Writer, run func(bridge.Callback)) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
		case <-finished:
			return
		}
		// A stop that lands before the generation starts is reset by it.
		t := time.NewTicker(50 * time.Millisecond)
		defer t.Stop()
		for {
			svc.StopGeneration(handle)
			select {
			case <-finished:
				return
			case <-t.C:
			}
		}
	}()

	var werr error
	run(bridge.CallbackFunc(func(fragment string, done bool) error {
		if werr != nil {
			return nil
		}
		if fragment != "" {
			if _, err := io.WriteString(w, fragment); err != nil {
				werr = err
				svc.StopGeneration(handle)
				return err
			}
		}
		if done {
			_, werr = io.WriteString(w, "\n")
		}
		return nil
	}))
	return werr
}
