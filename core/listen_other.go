//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package core

import (
	"errors"
	"net"
	"syscall"
)

var errReusePortUnsupported = errors.New("SO_REUSEPORT is not supported on this platform")

func (o ListenOptions) control(_, _ string, _ syscall.RawConn) error {
	if o.ReusePort {
		return errReusePortUnsupported
	}
	return nil
}

func (o ListenOptions) tuneConn(conn net.Conn) error {
	if o.Linger <= 0 {
		return nil
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		return tc.SetLinger(o.Linger)
	}
	return nil
}
