// Package console is the operator surface: it parses one line of input into a
// Command and routes it to the registry, the prober or the history log,
// printing a direct outcome for every command.
package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Op identifies a console command.
type Op int

const (
	OpList         Op = iota // print_socket, 0
	OpProbe                  // check_clients, 1
	OpEvict                  // remove_inactive_clients, 2
	OpClear                  // clear_logs, 3
	OpBroadcast              // broadcast_message <msg>, 4 <msg>
	OpSelect                 // set_current_client <index>, 5 <index>
	OpSend                   // send_command <msg>, 6 <msg>
	OpShowSelected           // print_current_index, 7
	OpHistory                // history [n], 8 [n]
	OpHelp                   // help, h
)

// DefaultHistoryCount is how many events "history" shows without an argument.
const DefaultHistoryCount = 20

var (
	// ErrParse is wrapped by every malformed-argument error.
	ErrParse = errors.New("console: parse error")

	// ErrUnknownCommand is returned for a keyword nobody knows.
	ErrUnknownCommand = errors.New("console: unknown command")

	// errEmpty marks a blank line; the prompt is simply shown again.
	errEmpty = errors.New("console: empty line")
)

// Command is a fully parsed operator command.
type Command struct {
	Op      Op
	Index   int    // OpSelect
	Count   int    // OpHistory
	Payload []byte // OpBroadcast, OpSend
}

type argKind int

const (
	argNone argKind = iota
	argMessage
	argIndex
	argOptionalCount
)

type keyword struct {
	op  Op
	arg argKind
}

// keywords maps both the long name and the numeric alias of every command.
var keywords = map[string]keyword{
	"print_socket":            {OpList, argNone},
	"0":                       {OpList, argNone},
	"check_clients":           {OpProbe, argNone},
	"1":                       {OpProbe, argNone},
	"remove_inactive_clients": {OpEvict, argNone},
	"2":                       {OpEvict, argNone},
	"clear_logs":              {OpClear, argNone},
	"3":                       {OpClear, argNone},
	"broadcast_message":       {OpBroadcast, argMessage},
	"4":                       {OpBroadcast, argMessage},
	"set_current_client":      {OpSelect, argIndex},
	"5":                       {OpSelect, argIndex},
	"send_command":            {OpSend, argMessage},
	"6":                       {OpSend, argMessage},
	"print_current_index":     {OpShowSelected, argNone},
	"7":                       {OpShowSelected, argNone},
	"history":                 {OpHistory, argOptionalCount},
	"8":                       {OpHistory, argOptionalCount},
	"help":                    {OpHelp, argNone},
	"h":                       {OpHelp, argNone},
}

// Parse turns one input line into a Command. Keywords are case-sensitive.
// For message commands the payload is everything after the first space,
// byte for byte.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, errEmpty
	}

	word, rest, hasRest := strings.Cut(line, " ")
	sp, ok := keywords[word]
	if !ok {
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, word)
	}

	cmd := Command{Op: sp.op}
	switch sp.arg {
	case argNone:
		if hasRest {
			return Command{}, fmt.Errorf("%w: %s takes no arguments", ErrParse, word)
		}
	case argMessage:
		if rest == "" {
			return Command{}, fmt.Errorf("%w: %s needs a message", ErrParse, word)
		}
		cmd.Payload = []byte(rest)
	case argIndex:
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			return Command{}, fmt.Errorf("%w: %s needs a numeric index, got %q", ErrParse, word, rest)
		}
		cmd.Index = n
	case argOptionalCount:
		cmd.Count = DefaultHistoryCount
		if hasRest {
			n, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil || n <= 0 {
				return Command{}, fmt.Errorf("%w: %s needs a positive count, got %q", ErrParse, word, rest)
			}
			cmd.Count = n
		}
	}
	return cmd, nil
}
