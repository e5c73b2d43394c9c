package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"print_socket", Command{Op: OpList}},
		{"0", Command{Op: OpList}},
		{"  1  ", Command{Op: OpProbe}},
		{"check_clients", Command{Op: OpProbe}},
		{"2", Command{Op: OpEvict}},
		{"remove_inactive_clients", Command{Op: OpEvict}},
		{"3", Command{Op: OpClear}},
		{"broadcast_message hello world", Command{Op: OpBroadcast, Payload: []byte("hello world")}},
		{"4 hi", Command{Op: OpBroadcast, Payload: []byte("hi")}},
		{"set_current_client 1", Command{Op: OpSelect, Index: 1}},
		{"5 0", Command{Op: OpSelect, Index: 0}},
		{"send_command ls -la", Command{Op: OpSend, Payload: []byte("ls -la")}},
		{"6 x", Command{Op: OpSend, Payload: []byte("x")}},
		{"print_current_index", Command{Op: OpShowSelected}},
		{"7", Command{Op: OpShowSelected}},
		{"history", Command{Op: OpHistory, Count: DefaultHistoryCount}},
		{"8 5", Command{Op: OpHistory, Count: 5}},
		{"help", Command{Op: OpHelp}},
		{"h", Command{Op: OpHelp}},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			got, err := Parse(tc.line)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"set_current_client abc", ErrParse},
		{"5", ErrParse},
		{"5 1.5", ErrParse},
		{"broadcast_message", ErrParse},
		{"6", ErrParse},
		{"0 extra", ErrParse},
		{"8 -1", ErrParse},
		{"PRINT_SOCKET", ErrUnknownCommand},
		{"9", ErrUnknownCommand},
		{"   ", errEmpty},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			_, err := Parse(tc.line)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNCTarget(t *testing.T) {
	assert.Equal(t, "127.0.0.1 3000", ncTarget("127.0.0.1:3000"))
	assert.Equal(t, "127.0.0.1 4000", ncTarget("0.0.0.0:4000"))
	assert.Equal(t, "127.0.0.1 4000", ncTarget(":4000"))
	assert.Equal(t, "weird", ncTarget("weird"))
}
