package registry

import (
	"github.com/Operative-001/switchboard/internal/transport"
	"go.uber.org/zap"
)

// Select makes the entry currently at index the selection. The address is
// stored, not the index, so later removals cannot retarget it. An index out
// of range leaves the previous selection untouched.
func (r *Registry) Select(index int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.entries) {
		return "", ErrIndexOutOfRange
	}
	r.selected = r.entries[index].Addr
	r.logger.Info("selection changed", zap.String("addr", r.selected), zap.Int("index", index))
	return r.selected, nil
}

// Selected returns the stored selection. The address may refer to a
// connection that has been evicted since; use Resolve to check.
func (r *Registry) Selected() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected, r.selected != ""
}

// Resolve runs fn on the selected entry under the lock. It returns false when
// nothing is selected or the selected address is no longer registered.
func (r *Registry) Resolve(fn func(e *Entry)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == "" {
		return false
	}
	e := r.findLocked(r.selected)
	if e == nil {
		return false
	}
	if fn != nil {
		fn(e)
	}
	return true
}

// SendToSelected writes b to the selected connection without blocking. It
// returns ErrNoSelection when there is no live selection and a *WriteError
// when the write fails. A failed write does not evict.
func (r *Registry) SendToSelected(b []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == "" {
		return "", ErrNoSelection
	}
	e := r.findLocked(r.selected)
	if e == nil {
		return r.selected, ErrNoSelection
	}
	if _, err := transport.TryWrite(e.Conn, b); err != nil {
		return e.Addr, &WriteError{Addr: e.Addr, Err: err}
	}
	return e.Addr, nil
}
