package transport

import (
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
)

const maxAcceptBackoff = time.Second

// Listener accepts inbound TCP connections and hands each one to a callback.
// It never reads from the connections it accepts.
type Listener struct {
	ln     net.Listener
	logger *zap.Logger
}

// Listen binds addr. A bind failure is returned as is; the caller decides
// whether it is fatal.
func Listen(addr string, logger *zap.Logger) (*Listener, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, logger: logger.Named("listener")}, nil
}

// Addr returns the bound address, useful when listening on port 0.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve runs the accept loop until the listener is closed, then returns nil.
// Accept errors other than a closed listener (fd exhaustion, aborted
// handshakes) are logged and retried with a capped backoff.
func (l *Listener) Serve(onAccept func(net.Conn)) error {
	var backoff time.Duration
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff *= 2
			}
			if backoff > maxAcceptBackoff {
				backoff = maxAcceptBackoff
			}
			l.logger.Warn("accept failed; retrying",
				zap.Error(err), zap.Duration("backoff", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		l.logger.Debug("accepted", zap.Stringer("remote", conn.RemoteAddr()))
		onAccept(conn)
	}
}

// Close stops the accept loop. Connections already handed out are not
// touched.
func (l *Listener) Close() error {
	return l.ln.Close()
}
