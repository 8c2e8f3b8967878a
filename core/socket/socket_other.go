//go:build !unix

package socket

import (
	"net"
	"syscall"
)

func control(network, address string, c syscall.RawConn) error {
	return nil
}

func tuneConn(conn *net.TCPConn) {
	conn.SetKeepAlive(true)
}
