// Package liveness guesses whether registered peers are still there.
//
// There is no heartbeat protocol. A probe is a single non-blocking write of a
// fixed payload: success means alive, a hard error (reset, broken pipe,
// closed socket) means dead. A write that would block counts as alive, since
// a full send buffer does not prove the peer went away; the would-block error
// is still reported in Status.Err so the operator can see it.
//
// Known limitation: a peer that keeps its socket open but never reads is
// indistinguishable from a live one until its receive window fills, and even
// then only shows up as would-block. A peer that closed cleanly usually needs
// two probes before the reset surfaces as an error.
package liveness

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Operative-001/switchboard/internal/registry"
	"github.com/Operative-001/switchboard/internal/transport"
)

// DefaultPayload is written to every connection by a probe.
const DefaultPayload = "Hello, are you there?"

// Status is the probe outcome for one connection.
type Status struct {
	Addr  string
	Alive bool
	Err   error // nil, transport.ErrWouldBlock (still alive) or the hard error
}

// WouldBlock reports whether the peer was only presumed alive.
func (s Status) WouldBlock() bool {
	return errors.Is(s.Err, transport.ErrWouldBlock)
}

// Config configures a Prober.
type Config struct {
	Registry *registry.Registry
	Payload  []byte       // defaults to DefaultPayload
	Logger   *zap.Logger  // defaults to a no-op logger
	OnEvict  func(Status) // called for every evicted connection, outside the registry lock
}

// Prober runs liveness probes against a Registry.
type Prober struct {
	reg     *registry.Registry
	payload []byte
	logger  *zap.Logger
	onEvict func(Status)
}

// New creates a Prober.
func New(cfg Config) *Prober {
	if cfg.Registry == nil {
		panic("liveness: nil registry")
	}
	if len(cfg.Payload) == 0 {
		cfg.Payload = []byte(DefaultPayload)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Prober{
		reg:     cfg.Registry,
		payload: cfg.Payload,
		logger:  cfg.Logger.Named("liveness"),
		onEvict: cfg.OnEvict,
	}
}

func (p *Prober) probe(e *registry.Entry) Status {
	_, err := transport.TryWrite(e.Conn, p.payload)
	st := Status{Addr: e.Addr, Alive: true, Err: err}
	if err != nil && !errors.Is(err, transport.ErrWouldBlock) {
		st.Alive = false
	}
	return st
}

// ProbeAll probes every connection and reports the result in registry order.
// Nothing is removed.
func (p *Prober) ProbeAll() []Status {
	var out []Status
	p.reg.Each(func(_ int, e *registry.Entry) {
		out = append(out, p.probe(e))
	})
	return out
}

// EvictDead probes every connection and removes the ones that failed. The
// current selection is left as is; a selection pointing at an evicted
// connection simply stops resolving.
func (p *Prober) EvictDead() []Status {
	var out []Status
	p.reg.RemoveWhere(func(e *registry.Entry) bool {
		st := p.probe(e)
		out = append(out, st)
		return st.Alive
	})

	for _, st := range out {
		if st.Alive {
			continue
		}
		p.logger.Info("evicted", zap.String("addr", st.Addr), zap.Error(st.Err))
		if p.onEvict != nil {
			p.onEvict(st)
		}
	}
	return out
}

// Sweep runs EvictDead every interval until ctx is done.
func (p *Prober) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := 0
			for _, st := range p.EvictDead() {
				if !st.Alive {
					evicted++
				}
			}
			if evicted > 0 {
				p.logger.Info("sweep finished", zap.Int("evicted", evicted), zap.Int("remaining", p.reg.Len()))
			}
		}
	}
}
