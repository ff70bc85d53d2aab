package bridge

import (
	"sync/atomic"
	"time"

	"inferbridge/pkg/types"
)

// Group aggregates the services of one process for status reporting.
type Group struct {
	services []*Service
	start    time.Time
	ready    atomic.Bool
}

func NewGroup(services ...*Service) *Group {
	return &Group{services: services, start: time.Now()}
}

// Service returns the member of the given kind.
func (g *Group) Service(kind Kind) (*Service, bool) {
	for _, s := range g.services {
		if s.kind == kind {
			return s, true
		}
	}
	return nil, false
}

// SetReady marks preloading as finished.
func (g *Group) SetReady(v bool) { g.ready.Store(v) }
func (g *Group) Ready() bool     { return g.ready.Load() }

// Status builds the /status payload.
func (g *Group) Status() types.StatusResponse {
	resp := types.StatusResponse{
		Handles:        []types.HandleStatus{},
		Host:           hostInfo(),
		UptimeSeconds:  int64(time.Since(g.start).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
		State:          "loading",
	}
	if g.Ready() {
		resp.State = "ready"
	}
	for _, s := range g.services {
		for _, h := range s.Handles() {
			if h.Generating {
				resp.Generating++
			}
			resp.Handles = append(resp.Handles, h)
		}
	}
	return resp
}

// Close closes every service.
func (g *Group) Close() {
	g.ready.Store(false)
	for _, s := range g.services {
		s.Close()
	}
}
