package core

import (
	"context"
	"net"
)

// ListenOptions tunes the listening socket and every accepted connection
type ListenOptions struct {
	// ReusePort sets SO_REUSEPORT so several server processes can bind the
	// same address and share its connections
	ReusePort bool
	// Linger sets SO_LINGER, in seconds, on accepted connections so Close
	// waits for the response to be acknowledged. Zero keeps the OS default.
	Linger int
}

// Listen binds a TCP listener on addr with the given socket options
func Listen(addr string, opts ListenOptions) (net.Listener, error) {
	lc := net.ListenConfig{Control: opts.control}
	return lc.Listen(context.Background(), "tcp", addr)
}
