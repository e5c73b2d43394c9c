//go:build unix

package transport

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

const rawWriteSupported = true

// tryWriteRaw issues exactly one sendmsg(2) with MSG_DONTWAIT. The callback
// always reports done, so the runtime poller never parks us waiting for the
// socket to become writable.
func tryWriteRaw(rc syscall.RawConn, b []byte) (int, error) {
	var (
		n     int
		opErr error
	)
	err := rc.Write(func(fd uintptr) bool {
		n, opErr = unix.SendmsgN(int(fd), b, nil, nil, sendFlags)
		return true
	})
	if err != nil {
		return 0, err
	}
	if opErr != nil {
		if errors.Is(opErr, unix.EAGAIN) || errors.Is(opErr, unix.EWOULDBLOCK) {
			return 0, ErrWouldBlock
		}
		return 0, os.NewSyscallError("sendmsg", opErr)
	}
	return n, nil
}
