// Package server assembles the connection registry, the accept loop, the
// liveness prober and the history log, and owns their lifecycle.
//
// Design:
//   - One goroutine runs the accept loop; every accepted conn goes straight
//     into the registry and is never read from.
//   - An optional goroutine sweeps dead connections on a fixed interval.
//   - The operator console runs wherever the caller wants (normally the main
//     goroutine) and reaches the registry only through the handle returned
//     by Registry or through Dispatcher.
package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Operative-001/switchboard/internal/console"
	"github.com/Operative-001/switchboard/internal/history"
	"github.com/Operative-001/switchboard/internal/liveness"
	"github.com/Operative-001/switchboard/internal/registry"
	"github.com/Operative-001/switchboard/internal/transport"
)

// DefaultListen is the address used when Config.Listen is empty.
const DefaultListen = "127.0.0.1:3000"

// Config configures a Server.
type Config struct {
	Listen        string        // TCP listen address; defaults to DefaultListen
	DataDir       string        // where the history db lives; empty disables history
	ProbePayload  []byte        // defaults to liveness.DefaultPayload
	SweepInterval time.Duration // periodic eviction; 0 disables it
	Logger        *zap.Logger
}

// BindError means the listen address could not be bound. It is fatal for the
// accept loop and is reported exactly once, from Start.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("server: bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Server is a running switchboard.
type Server struct {
	cfg    Config
	logger *zap.Logger
	reg    *registry.Registry
	prober *liveness.Prober
	hist   *history.Log

	ln     *transport.Listener
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
	stopErr  error
}

// New creates a Server. It opens the history log when cfg.DataDir is set but
// does not bind anything yet.
func New(cfg Config) (*Server, error) {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger.Named("server"),
		reg:    registry.New(cfg.Logger),
	}

	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("server: data dir: %w", err)
		}
		hist, err := history.Open(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("server: open history: %w", err)
		}
		s.hist = hist
	}

	s.prober = liveness.New(liveness.Config{
		Registry: s.reg,
		Payload:  cfg.ProbePayload,
		Logger:   cfg.Logger,
		OnEvict: func(st liveness.Status) {
			detail := ""
			if st.Err != nil {
				detail = st.Err.Error()
			}
			s.record(history.KindEvicted, st.Addr, detail)
		},
	})
	return s, nil
}

// Start binds the listen address and launches the accept loop and, if
// configured, the sweep. A bind failure is returned as a *BindError.
func (s *Server) Start(ctx context.Context) error {
	ln, err := transport.Listen(s.cfg.Listen, s.cfg.Logger)
	if err != nil {
		return &BindError{Addr: s.cfg.Listen, Err: err}
	}
	s.ln = ln
	s.logger.Info("listening", zap.Stringer("addr", ln.Addr()))

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ln.Serve(s.accept) //nolint:errcheck
	}()

	if s.cfg.SweepInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.prober.Sweep(ctx, s.cfg.SweepInterval)
		}()
	}
	return nil
}

func (s *Server) accept(conn net.Conn) {
	if idx := s.reg.Insert(conn); idx >= 0 {
		s.record(history.KindAccepted, conn.RemoteAddr().String(), "")
	}
}

func (s *Server) record(kind history.Kind, addr, detail string) {
	if s.hist == nil {
		return
	}
	if err := s.hist.Record(kind, addr, detail); err != nil {
		s.logger.Warn("history record failed", zap.String("kind", string(kind)),
			zap.String("addr", addr), zap.Error(err))
	}
}

// Stop closes the listener, every held connection and the history log.
// It is safe to call more than once.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		var err error
		if s.ln != nil {
			err = multierr.Append(err, s.ln.Close())
		}
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()

		err = multierr.Append(err, s.reg.Close())
		if s.hist != nil {
			err = multierr.Append(err, s.hist.Close())
		}
		s.stopErr = err
		s.logger.Info("stopped")
	})
	return s.stopErr
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Registry returns the connection registry.
func (s *Server) Registry() *registry.Registry { return s.reg }

// Prober returns the liveness prober.
func (s *Server) Prober() *liveness.Prober { return s.prober }

// History returns the history log, or nil when it is disabled.
func (s *Server) History() *history.Log { return s.hist }

// Dispatcher returns an operator console writing to out.
func (s *Server) Dispatcher(out io.Writer) *console.Dispatcher {
	listen := s.cfg.Listen
	if addr := s.Addr(); addr != nil {
		listen = addr.String()
	}
	return console.New(console.Config{
		Registry:   s.reg,
		Prober:     s.prober,
		History:    s.hist,
		Out:        out,
		ListenAddr: listen,
		Logger:     s.cfg.Logger,
	})
}
