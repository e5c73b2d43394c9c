//go:build linux

package transport

import "golang.org/x/sys/unix"

// MSG_NOSIGNAL keeps a write to a reset peer an EPIPE instead of a SIGPIPE.
const sendFlags = unix.MSG_DONTWAIT | unix.MSG_NOSIGNAL
