package worker

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listen binds addr with SO_REUSEPORT set, so every worker in the
// fleet shares one port and a rolling-restart replacement can bind
// while the worker it replaces is still serving. The kernel spreads
// incoming connections across the bound sockets.
//
// A socket on the port that was bound without SO_REUSEPORT still makes
// the bind fail, which keeps "port already taken by a foreign process"
// a fatal startup error.
func listen(addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	return lc.Listen(context.Background(), "tcp", addr)
}
