package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Operative-001/switchboard/internal/history"
	"github.com/Operative-001/switchboard/internal/liveness"
	"github.com/Operative-001/switchboard/internal/registry"
	"github.com/Operative-001/switchboard/internal/transport"
)

type fixture struct {
	d     *Dispatcher
	reg   *registry.Registry
	out   *bytes.Buffer
	conns []*transport.MemoryConn
}

func newFixture(t *testing.T, addrs ...string) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	reg := registry.New(logger)
	f := &fixture{reg: reg, out: &bytes.Buffer{}}
	for _, a := range addrs {
		c := transport.NewMemoryConn(a)
		f.conns = append(f.conns, c)
		reg.Insert(c)
	}
	f.d = New(Config{
		Registry:   reg,
		Prober:     liveness.New(liveness.Config{Registry: reg, Logger: logger}),
		Out:        f.out,
		ListenAddr: "127.0.0.1:3000",
		Logger:     logger,
	})
	return f
}

// run handles line and returns what it printed.
func (f *fixture) run(line string) string {
	f.out.Reset()
	f.d.Handle(line)
	return f.out.String()
}

func TestListCommand(t *testing.T) {
	f := newFixture(t, "a:1", "b:2")
	out := f.run("print_socket")
	assert.Contains(t, out, "[0] a:1\n")
	assert.Contains(t, out, "[1] b:2\n")

	f = newFixture(t)
	assert.Contains(t, f.run("0"), "no connections")
}

func TestProbeCommand(t *testing.T) {
	f := newFixture(t, "a:1", "b:2")
	f.conns[1].Fail(errors.New("broken pipe"))

	out := f.run("check_clients")
	assert.Contains(t, out, "Client a:1 is alive\n")
	assert.Contains(t, out, "Client b:2 might be disconnected: broken pipe")
	assert.Equal(t, 2, f.reg.Len())
}

func TestEvictCommand(t *testing.T) {
	f := newFixture(t, "a:1", "b:2", "c:3")
	f.conns[0].Fail(errors.New("connection reset by peer"))

	out := f.run("2")
	assert.Contains(t, out, "Client a:1 is disconnected, removing...")
	assert.Contains(t, out, "removed 1, 2 remaining")
	assert.Contains(t, f.run("0"), "[0] b:2\n")
}

func TestClearCommand(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, clearScreen, f.run("clear_logs"))
}

func TestBroadcastCommand(t *testing.T) {
	f := newFixture(t, "a:1", "b:2", "c:3")
	f.conns[2].Fail(errors.New("broken pipe"))

	out := f.run("broadcast_message hello there")
	assert.Contains(t, out, "Message sent to a:1")
	assert.Contains(t, out, "Message sent to b:2")
	assert.Contains(t, out, "Failed to send message to c:3: broken pipe")
	assert.Equal(t, "hello there", string(f.conns[0].Written()))
	assert.Equal(t, 3, f.reg.Len())
}

func TestSelectAndSend(t *testing.T) {
	f := newFixture(t, "a:1", "b:2")

	assert.Contains(t, f.run("6 early"), "no client selected")

	assert.Contains(t, f.run("set_current_client 1"), "current client set to [1] b:2")
	assert.Contains(t, f.run("send_command hi"), "Message sent to b:2")
	assert.Equal(t, "hi", string(f.conns[1].Written()))
	assert.Empty(t, f.conns[0].Written())
	assert.Equal(t, "current client: b:2\n", f.run("print_current_index"))
}

func TestSelectOutOfRange(t *testing.T) {
	f := newFixture(t, "a:1", "b:2")
	f.run("5 0")

	out := f.run("set_current_client 99")
	assert.Contains(t, out, "index 99 out of range (2 connections)")
	err := f.d.Execute(Command{Op: OpSelect, Index: 99})
	assert.ErrorIs(t, err, registry.ErrIndexOutOfRange)
	assert.Equal(t, "current client: a:1\n", f.run("7"))
}

func TestSendAfterEviction(t *testing.T) {
	f := newFixture(t, "a:1", "b:2")
	f.run("5 0")
	f.conns[0].Fail(errors.New("broken pipe"))
	f.run("remove_inactive_clients")

	out := f.run("send_command hi")
	assert.Contains(t, out, "selected client a:1 is no longer connected")
	err := f.d.Execute(Command{Op: OpSend, Payload: []byte("hi")})
	assert.ErrorIs(t, err, registry.ErrNoSelection)
	assert.Equal(t, "current client: a:1 (disconnected)\n", f.run("7"))
}

func TestParseFailureLeavesState(t *testing.T) {
	f := newFixture(t, "a:1")
	f.run("5 0")
	assert.Contains(t, f.run("5 zero"), "error: console: parse error")
	assert.Equal(t, "current client: a:1\n", f.run("7"))
}

func TestUnknownAndEmpty(t *testing.T) {
	f := newFixture(t)
	assert.Contains(t, f.run("frobnicate"), "unknown command")
	assert.Empty(t, f.run(""))
}

func TestHelpCommand(t *testing.T) {
	f := newFixture(t)
	out := f.run("h")
	assert.Contains(t, out, "`nc 127.0.0.1 3000`")
	assert.Contains(t, out, "set_current_client <index>")
}

func TestHistoryCommand(t *testing.T) {
	f := newFixture(t)
	assert.Contains(t, f.run("history"), "history is disabled")

	hist, err := history.Open(t.TempDir())
	require.NoError(t, err)
	defer hist.Close()
	require.NoError(t, hist.Record(history.KindAccepted, "a:1", ""))
	require.NoError(t, hist.Record(history.KindEvicted, "a:1", "broken pipe"))
	f.d.hist = hist

	out := f.run("8 1")
	assert.NotContains(t, out, "accepted")
	assert.Contains(t, out, "evicted")
	assert.Contains(t, out, "(broken pipe)")
}

func TestRun(t *testing.T) {
	f := newFixture(t, "a:1")
	in := strings.NewReader("0\n\n5 0\n6 ping\n")

	done := make(chan error, 1)
	go func() { done <- f.d.Run(context.Background(), in) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return at EOF")
	}
	out := f.out.String()
	assert.True(t, strings.HasPrefix(out, "Enter help to show commands: \n"))
	assert.Equal(t, 4, strings.Count(out, prompt))
	assert.Equal(t, "ping", string(f.conns[0].Written()))
}
