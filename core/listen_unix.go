//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package core

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

func (o ListenOptions) control(_, _ string, c syscall.RawConn) error {
	if !o.ReusePort {
		return nil
	}
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return serr
}

// tuneConn applies the per-connection options to an accepted socket
func (o ListenOptions) tuneConn(conn net.Conn) error {
	if o.Linger <= 0 {
		return nil
	}
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return err
	}

	var serr error
	err = raw.Control(func(fd uintptr) {
		serr = unix.SetsockoptLinger(int(fd), unix.SOL_SOCKET, unix.SO_LINGER,
			&unix.Linger{Onoff: 1, Linger: int32(o.Linger)})
	})
	if err != nil {
		return err
	}
	return serr
}
