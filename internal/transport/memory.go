package transport

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// memoryAddr is the net.Addr of a MemoryConn.
type memoryAddr string

func (a memoryAddr) Network() string { return "memory" }
func (a memoryAddr) String() string  { return string(a) }

var (
	memoryMu     sync.Mutex
	memoryNextID int
)

// MemoryConn is an in-process net.Conn for tests. Bytes written to it are
// kept so the test can play the peer, and failure modes of a real socket can
// be injected: a full send buffer (SetCapacity) or a hard error (Fail).
type MemoryConn struct {
	remote memoryAddr

	mu       sync.Mutex
	buf      bytes.Buffer
	capacity int // 0 = unlimited
	failErr  error
	closed   bool
}

var _ TryWriter = (*MemoryConn)(nil)

// NewMemoryConn creates a MemoryConn whose RemoteAddr is remote, or a unique
// "mem-N" address when remote is empty.
func NewMemoryConn(remote string) *MemoryConn {
	if remote == "" {
		memoryMu.Lock()
		memoryNextID++
		remote = fmt.Sprintf("mem-%d", memoryNextID)
		memoryMu.Unlock()
	}
	return &MemoryConn{remote: memoryAddr(remote)}
}

// TryWrite never blocks. Once the capacity is reached it returns
// ErrWouldBlock, after Fail it returns the injected error.
func (c *MemoryConn) TryWrite(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	if c.failErr != nil {
		return 0, c.failErr
	}
	if c.capacity > 0 {
		room := c.capacity - c.buf.Len()
		if room <= 0 {
			return 0, ErrWouldBlock
		}
		if len(b) > room {
			b = b[:room]
		}
	}
	return c.buf.Write(b)
}

func (c *MemoryConn) Write(b []byte) (int, error) { return c.TryWrite(b) }

// Read reports end of stream; nothing in this module reads from peers.
func (c *MemoryConn) Read(_ []byte) (int, error) { return 0, io.EOF }

func (c *MemoryConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	c.closed = true
	return nil
}

func (c *MemoryConn) LocalAddr() net.Addr  { return memoryAddr("memory-local") }
func (c *MemoryConn) RemoteAddr() net.Addr { return c.remote }

func (c *MemoryConn) SetDeadline(time.Time) error      { return nil }
func (c *MemoryConn) SetReadDeadline(time.Time) error  { return nil }
func (c *MemoryConn) SetWriteDeadline(time.Time) error { return nil }

// Written returns a copy of every byte accepted so far.
func (c *MemoryConn) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.buf.Bytes())
}

// SetCapacity limits the total number of bytes the conn accepts.
func (c *MemoryConn) SetCapacity(n int) {
	c.mu.Lock()
	c.capacity = n
	c.mu.Unlock()
}

// Fail makes every subsequent write return err, like a reset peer.
func (c *MemoryConn) Fail(err error) {
	c.mu.Lock()
	c.failErr = err
	c.mu.Unlock()
}

// Closed reports whether Close has been called.
func (c *MemoryConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
