// Package registry holds the process-wide table of accepted connections.
//
// Entries are kept in insertion order and addressed by position. Positions
// are not identities: removing an entry shifts every later entry down by one,
// so an index is only meaningful until the next removal. The current
// selection is therefore stored as a remote address.
//
// A single sync.Mutex guards the entries and the selection. Every operation
// holds it for exactly one call and never across a blocking network call;
// writes made under the lock go through transport.TryWrite.
package registry

import (
	"net"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Entry is one accepted connection. Addr is fixed at insertion.
type Entry struct {
	Conn net.Conn
	Addr string
}

// Position is one line of a List snapshot.
type Position struct {
	Index int
	Addr  string
}

// Registry is the connection table. The zero value is not usable; call New.
type Registry struct {
	logger *zap.Logger

	mu       sync.Mutex
	entries  []*Entry
	selected string // remote address, "" when unset
	closed   bool
}

// New creates an empty Registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{logger: logger.Named("registry")}
}

// Insert appends conn and returns its position. On a closed registry the
// conn is closed and -1 is returned.
func (r *Registry) Insert(conn net.Conn) int {
	addr := conn.RemoteAddr().String()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close() //nolint:errcheck
		return -1
	}
	idx := len(r.entries)
	r.entries = append(r.entries, &Entry{Conn: conn, Addr: addr})
	r.mu.Unlock()

	r.logger.Info("connection registered", zap.String("addr", addr), zap.Int("index", idx))
	return idx
}

// List returns the current positions. The result is a copy and goes stale on
// the next removal.
func (r *Registry) List() []Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Position, len(r.entries))
	for i, e := range r.entries {
		out[i] = Position{Index: i, Addr: e.Addr}
	}
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Each calls fn for every entry in order while holding the lock. fn must not
// block and must not retain e.
func (r *Registry) Each(fn func(i int, e *Entry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		fn(i, e)
	}
}

// RemoveWhere keeps the entries for which keep returns true, in their
// original relative order, and removes the rest. keep runs under the lock
// and must not block. Removed connections are closed once the lock is
// released. It returns the number of entries removed.
func (r *Registry) RemoveWhere(keep func(e *Entry) bool) int {
	r.mu.Lock()
	survivors := r.entries[:0]
	var removed []*Entry
	for _, e := range r.entries {
		if keep(e) {
			survivors = append(survivors, e)
		} else {
			removed = append(removed, e)
		}
	}
	for i := len(survivors); i < len(r.entries); i++ {
		r.entries[i] = nil
	}
	r.entries = survivors
	r.mu.Unlock()

	for _, e := range removed {
		e.Conn.Close() //nolint:errcheck
		r.logger.Info("connection removed", zap.String("addr", e.Addr))
	}
	return len(removed)
}

// FindByAddress runs fn on the entry whose remote address is addr, under the
// lock. It reports whether such an entry exists.
func (r *Registry) FindByAddress(addr string, fn func(e *Entry)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.findLocked(addr)
	if e == nil {
		return false
	}
	if fn != nil {
		fn(e)
	}
	return true
}

func (r *Registry) findLocked(addr string) *Entry {
	for _, e := range r.entries {
		if e.Addr == addr {
			return e
		}
	}
	return nil
}

// Close closes every held connection and rejects further inserts.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := r.entries
	r.entries = nil
	r.selected = ""
	r.closed = true
	r.mu.Unlock()

	var err error
	for _, e := range entries {
		err = multierr.Append(err, e.Conn.Close())
	}
	r.logger.Info("registry closed", zap.Int("connections", len(entries)))
	return err
}
