//go:build linux

// File: transport/sockopt_linux.go
// Author: momentics <momentics@gmail.com>

package transport

import (
	"net"
	"syscall"

	"github.com/yanun0323/errors"
	"golang.org/x/sys/unix"
)

// setSendBuffer sets SO_SNDBUF on the socket behind nc.
func setSendBuffer(nc net.Conn, size int) error {
	sc, ok := nc.(syscall.Conn)
	if !ok {
		return nil
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return errors.Wrap(err, "syscall conn")
	}
	var serr error
	if err := raw.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, size)
	}); err != nil {
		return errors.Wrap(err, "raw control")
	}
	if serr != nil {
		return errors.Wrapf(serr, "setsockopt SO_SNDBUF %d", size)
	}
	return nil
}
