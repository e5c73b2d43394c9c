//go:build !unix

package transport

import (
	"errors"
	"syscall"
)

const rawWriteSupported = false

func tryWriteRaw(_ syscall.RawConn, _ []byte) (int, error) {
	return 0, errors.New("transport: raw write not supported on this platform")
}
