package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/Operative-001/switchboard/internal/history"
	"github.com/Operative-001/switchboard/internal/liveness"
	"github.com/Operative-001/switchboard/internal/registry"
)

const (
	separator   = "-------------------------------------"
	clearScreen = "\x1b[2J\x1b[1;1H"
	prompt      = "Enter command or h for help: "
)

// Config configures a Dispatcher.
type Config struct {
	Registry   *registry.Registry
	Prober     *liveness.Prober
	History    *history.Log // optional
	Out        io.Writer
	ListenAddr string // shown in the help text
	Logger     *zap.Logger
}

// Dispatcher executes commands one at a time and prints their outcome.
// It is not safe for concurrent use; the console is a single sequential loop.
type Dispatcher struct {
	reg    *registry.Registry
	prober *liveness.Prober
	hist   *history.Log
	out    io.Writer
	listen string
	logger *zap.Logger
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Dispatcher{
		reg:    cfg.Registry,
		prober: cfg.Prober,
		hist:   cfg.History,
		out:    cfg.Out,
		listen: cfg.ListenAddr,
		logger: cfg.Logger.Named("console"),
	}
}

// Run reads commands from in until EOF or ctx is done. Every line gets an
// outcome followed by the prompt. A command failure is printed and the loop
// carries on; only a read error ends Run with an error.
func (d *Dispatcher) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	fmt.Fprintln(d.out, "Enter help to show commands: ")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			d.Handle(line)
			fmt.Fprint(d.out, prompt)
		}
	}
}

// Handle parses and executes one input line.
func (d *Dispatcher) Handle(line string) {
	cmd, err := Parse(line)
	switch {
	case errors.Is(err, errEmpty):
		return
	case errors.Is(err, ErrUnknownCommand):
		fmt.Fprintf(d.out, "unknown command: %q (h for help)\n", line)
		return
	case err != nil:
		fmt.Fprintf(d.out, "error: %v\n", err)
		return
	}
	d.Execute(cmd) //nolint:errcheck
}

// Execute runs cmd, prints its outcome and returns the command's error, if
// any. The error has already been shown to the operator.
func (d *Dispatcher) Execute(cmd Command) error {
	var err error
	switch cmd.Op {
	case OpList:
		d.list()
	case OpProbe:
		d.probe()
	case OpEvict:
		d.evict()
	case OpClear:
		fmt.Fprint(d.out, clearScreen)
	case OpBroadcast:
		err = d.broadcast(cmd.Payload)
	case OpSelect:
		err = d.selectIndex(cmd.Index)
	case OpSend:
		err = d.send(cmd.Payload)
	case OpShowSelected:
		d.showSelected()
	case OpHistory:
		err = d.history(cmd.Count)
	case OpHelp:
		d.help()
	default:
		err = fmt.Errorf("console: unhandled op %d", cmd.Op)
		fmt.Fprintf(d.out, "error: %v\n", err)
	}
	if err != nil {
		d.logger.Debug("command failed", zap.Int("op", int(cmd.Op)), zap.Error(err))
	}
	return err
}

func (d *Dispatcher) list() {
	list := d.reg.List()
	fmt.Fprintln(d.out, separator)
	if len(list) == 0 {
		fmt.Fprintln(d.out, "no connections")
	}
	for _, p := range list {
		fmt.Fprintf(d.out, "[%d] %s\n", p.Index, p.Addr)
	}
	fmt.Fprintln(d.out, separator)
}

func (d *Dispatcher) probe() {
	statuses := d.prober.ProbeAll()
	fmt.Fprintln(d.out, separator)
	if len(statuses) == 0 {
		fmt.Fprintln(d.out, "no connections")
	}
	for _, st := range statuses {
		switch {
		case st.WouldBlock():
			fmt.Fprintf(d.out, "Client %s is alive (send buffer full)\n", st.Addr)
		case st.Alive:
			fmt.Fprintf(d.out, "Client %s is alive\n", st.Addr)
		default:
			fmt.Fprintf(d.out, "Client %s might be disconnected: %v\n", st.Addr, st.Err)
		}
	}
	fmt.Fprintln(d.out, separator)
}

func (d *Dispatcher) evict() {
	statuses := d.prober.EvictDead()
	fmt.Fprintln(d.out, separator)
	removed := 0
	for _, st := range statuses {
		if st.Alive {
			fmt.Fprintf(d.out, "Client %s is alive\n", st.Addr)
			continue
		}
		removed++
		fmt.Fprintf(d.out, "Client %s is disconnected, removing... (%v)\n", st.Addr, st.Err)
	}
	fmt.Fprintf(d.out, "removed %d, %d remaining\n", removed, d.reg.Len())
	fmt.Fprintln(d.out, separator)
}

func (d *Dispatcher) broadcast(msg []byte) error {
	rep := d.reg.Broadcast(msg)
	fmt.Fprintln(d.out, separator)
	if len(rep) == 0 {
		fmt.Fprintln(d.out, "no connections")
	}
	for _, res := range rep {
		if res.Err != nil {
			fmt.Fprintf(d.out, "Failed to send message to %s: %v\n", res.Addr, res.Err)
			continue
		}
		fmt.Fprintf(d.out, "Message sent to %s\n", res.Addr)
	}
	fmt.Fprintln(d.out, separator)
	return rep.Err()
}

func (d *Dispatcher) selectIndex(index int) error {
	addr, err := d.reg.Select(index)
	if err != nil {
		fmt.Fprintf(d.out, "error: index %d out of range (%d connections)\n", index, d.reg.Len())
		return err
	}
	fmt.Fprintf(d.out, "current client set to [%d] %s\n", index, addr)
	return nil
}

func (d *Dispatcher) send(msg []byte) error {
	addr, err := d.reg.SendToSelected(msg)
	var we *registry.WriteError
	switch {
	case errors.Is(err, registry.ErrNoSelection):
		if addr != "" {
			fmt.Fprintf(d.out, "error: selected client %s is no longer connected\n", addr)
		} else {
			fmt.Fprintln(d.out, "error: no client selected (use set_current_client <index>)")
		}
	case errors.As(err, &we):
		fmt.Fprintf(d.out, "Failed to send message to %s: %v\n", we.Addr, we.Err)
	case err != nil:
		fmt.Fprintf(d.out, "error: %v\n", err)
	default:
		fmt.Fprintf(d.out, "Message sent to %s\n", addr)
	}
	return err
}

func (d *Dispatcher) showSelected() {
	addr, ok := d.reg.Selected()
	switch {
	case !ok:
		fmt.Fprintln(d.out, "no client selected")
	case !d.reg.Resolve(nil):
		fmt.Fprintf(d.out, "current client: %s (disconnected)\n", addr)
	default:
		fmt.Fprintf(d.out, "current client: %s\n", addr)
	}
}

func (d *Dispatcher) history(n int) error {
	if d.hist == nil {
		fmt.Fprintln(d.out, "history is disabled")
		return nil
	}
	events, err := d.hist.Recent(n)
	if err != nil {
		fmt.Fprintf(d.out, "error: %v\n", err)
		return err
	}
	fmt.Fprintln(d.out, separator)
	if len(events) == 0 {
		fmt.Fprintln(d.out, "no events")
	}
	for _, e := range events {
		fmt.Fprintln(d.out, FormatEvent(e))
	}
	fmt.Fprintln(d.out, separator)
	return nil
}

// FormatEvent renders one history event as a console line.
func FormatEvent(e history.Event) string {
	line := fmt.Sprintf("%s  %-8s  %s", e.Time.Local().Format(time.DateTime), e.Kind, e.Addr)
	if e.Detail != "" {
		line += "  (" + e.Detail + ")"
	}
	return line
}

func (d *Dispatcher) help() {
	fmt.Fprintln(d.out, "-------------------------------------------------------------------")
	if d.listen != "" {
		fmt.Fprintf(d.out, "nc can be used to dummy connect to the server: `nc %s`\n", ncTarget(d.listen))
	}
	fmt.Fprint(d.out, helpText)
	fmt.Fprintln(d.out, "-------------------------------------------------------------------")
}

const helpText = `Available commands:
0. print_socket                   - Print all connected client sockets
1. check_clients                  - Check if clients are still connected
2. remove_inactive_clients        - Remove disconnected clients
3. clear_logs                     - Clear the terminal logs
4. broadcast_message <message>    - Send a message to every client
5. set_current_client <index>     - Select the client at <index> (see print_socket)
6. send_command <message>         - Send a message to the selected client
7. print_current_index            - Show the selected client
8. history [n]                    - Show the last n connection events
h, help                           - Show this help message
`
