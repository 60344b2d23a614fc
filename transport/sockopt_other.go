//go:build !linux

// File: transport/sockopt_other.go
// Author: momentics <momentics@gmail.com>

package transport

import "net"

func setSendBuffer(nc net.Conn, size int) error {
	if tc, ok := nc.(*net.TCPConn); ok {
		return tc.SetWriteBuffer(size)
	}
	return nil
}
