//go:build unix && !linux

package transport

import "golang.org/x/sys/unix"

const sendFlags = unix.MSG_DONTWAIT
