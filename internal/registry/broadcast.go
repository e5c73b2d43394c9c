package registry

import (
	"github.com/Operative-001/switchboard/internal/transport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Result is the outcome of a write to one connection.
type Result struct {
	Addr string
	N    int
	Err  error
}

// Report is the per-connection outcome of a Broadcast, in registry order.
type Report []Result

// Failed returns the number of failed writes.
func (rep Report) Failed() int {
	n := 0
	for _, res := range rep {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Err combines every failure into one error, or nil.
func (rep Report) Err() error {
	var err error
	for _, res := range rep {
		if res.Err != nil {
			err = multierr.Append(err, &WriteError{Addr: res.Addr, Err: res.Err})
		}
	}
	return err
}

// Broadcast attempts a non-blocking write of b to every connection. A failure
// on one connection neither stops the others nor removes it; eviction is left
// to the liveness prober.
func (r *Registry) Broadcast(b []byte) Report {
	r.mu.Lock()
	rep := make(Report, 0, len(r.entries))
	for _, e := range r.entries {
		n, err := transport.TryWrite(e.Conn, b)
		rep = append(rep, Result{Addr: e.Addr, N: n, Err: err})
	}
	r.mu.Unlock()

	if failed := rep.Failed(); failed > 0 {
		r.logger.Warn("broadcast incomplete",
			zap.Int("failed", failed), zap.Int("total", len(rep)), zap.Error(rep.Err()))
	}
	return rep
}
