package conn

import (
	"github.com/rs/zerolog"

	"github.com/jbweber/virtconn/internal/libvirt"
	"github.com/jbweber/virtconn/internal/support"
)

const defaultFetchConcurrency = 8

// Option customizes a Connection.
type Option func(*Connection)

// WithOpener replaces the function used to open the live handle.
func WithOpener(o Opener) Option {
	return func(c *Connection) {
		if o != nil {
			c.opener = o
		}
	}
}

// WithDialer opens handles with d instead of the default Dialer.
func WithDialer(d libvirt.Dialer) Option {
	return func(c *Connection) {
		c.opener = DialerOpener(d)
	}
}

// WithLogger sets the logger. Defaults to the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Connection) {
		c.logger = l
	}
}

// WithMatrix replaces the support matrix (defaults to support.DefaultMatrix).
func WithMatrix(m support.Matrix) Option {
	return func(c *Connection) {
		if m != nil {
			c.matrix = m
		}
	}
}

// WithLocalVersion replaces the source of the local library version
// (defaults to libvirt.LibraryVersion).
func WithLocalVersion(fn func() uint64) Option {
	return func(c *Connection) {
		if fn != nil {
			c.localVersion = fn
		}
	}
}

// WithFetchConcurrency bounds how many describe calls one enumeration keeps
// in flight. Values below 1 are ignored.
func WithFetchConcurrency(n int) Option {
	return func(c *Connection) {
		if n > 0 {
			c.fetchConcurrency = n
		}
	}
}
