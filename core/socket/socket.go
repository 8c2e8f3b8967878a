// Package socket creates and tunes the server's TCP sockets.
package socket

import (
	"context"
	"net"
)

// Listen opens a TCP listener with the platform socket options applied.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: control}
	return lc.Listen(ctx, "tcp", addr)
}

// Tune applies per-connection options to an accepted connection. TLS
// connections are tuned through their underlying socket.
func Tune(conn net.Conn) {
	if tc, ok := conn.(interface{ NetConn() net.Conn }); ok {
		conn = tc.NetConn()
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
		tuneConn(tcp)
	}
}
