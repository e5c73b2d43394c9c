// Package transport provides the socket primitives the connection registry is
// built on: a TCP listener that hands every accepted connection to a callback,
// and TryWrite, a write that never waits on the peer.
//
// Anything that writes while holding the registry lock must go through
// TryWrite. A plain net.Conn.Write can block for as long as the peer refuses
// to drain its receive window, which would stall every other operator command.
package transport

import (
	"errors"
	"net"
	"os"
	"syscall"
	"time"
)

// ErrWouldBlock is returned by TryWrite when the connection cannot accept any
// bytes right now. It does not by itself mean the peer is gone.
var ErrWouldBlock = errors.New("transport: write would block")

// deadlineSlack bounds the fallback write path for connections that do not
// expose a raw file descriptor.
const deadlineSlack = time.Millisecond

// TryWriter is implemented by connections that can attempt a write without
// blocking. TryWrite prefers it over every other strategy.
type TryWriter interface {
	TryWrite(b []byte) (int, error)
}

// TryWrite attempts a single write of b to conn and returns immediately.
//
// A short write is not an error: the returned count tells how much the kernel
// took. When nothing could be written because the send buffer is full the
// error is ErrWouldBlock. Any other error (reset, broken pipe, closed
// connection) is returned as is.
func TryWrite(conn net.Conn, b []byte) (int, error) {
	if tw, ok := conn.(TryWriter); ok {
		return tw.TryWrite(b)
	}
	if rawWriteSupported {
		if sc, ok := conn.(syscall.Conn); ok {
			rc, err := sc.SyscallConn()
			if err != nil {
				return 0, err
			}
			return tryWriteRaw(rc, b)
		}
	}
	return tryWriteDeadline(conn, b)
}

// tryWriteDeadline emulates a non-blocking write with an almost immediate
// write deadline. Used for net.Pipe, TLS wrappers and platforms without a raw
// send path.
func tryWriteDeadline(conn net.Conn, b []byte) (int, error) {
	if err := conn.SetWriteDeadline(time.Now().Add(deadlineSlack)); err != nil {
		return 0, err
	}
	defer conn.SetWriteDeadline(time.Time{}) //nolint:errcheck

	n, err := conn.Write(b)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		if n > 0 {
			return n, nil
		}
		return 0, ErrWouldBlock
	}
	return n, err
}
