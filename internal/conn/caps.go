package conn

import (
	"fmt"

	"github.com/jbweber/virtconn/internal/metrics"
	"github.com/jbweber/virtconn/internal/objects"
)

// Capabilities returns the host capabilities, fetching them on first use.
// The snapshot is kept until InvalidateCapabilities or Close.
func (c *Connection) Capabilities() (*objects.Capabilities, error) {
	if c.caps != nil {
		return c.caps, nil
	}
	if c.handle == nil {
		return nil, ErrNotOpen
	}

	xml, err := c.handle.Capabilities()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch capabilities: %w", err)
	}
	caps, err := objects.NewCapabilities(c.ref, xml)
	if err != nil {
		return nil, err
	}

	c.caps = caps
	return caps, nil
}

// InvalidateCapabilities drops the capabilities snapshot so the next
// Capabilities call refetches it. Versions and object caches are untouched.
func (c *Connection) InvalidateCapabilities() {
	c.caps = nil
}

// LocalLibraryVersion returns the libvirt version on this host. A version
// forced by a synthetic address wins.
func (c *Connection) LocalLibraryVersion() uint64 {
	if v := c.res.Flags.LibVersion; v != nil {
		return *v
	}
	return c.localVersion()
}

// DaemonVersion returns the libvirt version of the daemon. For a local
// daemon it is the local library version, with no round trip. A remote
// lookup happens once; a failure is remembered as 0.
func (c *Connection) DaemonVersion() uint64 {
	if v := c.res.Flags.LibVersion; v != nil {
		return *v
	}
	if !c.IsRemote() {
		return c.LocalLibraryVersion()
	}
	return c.fetchVersion(&c.daemonVersion, "daemon", func(h Handle) (uint64, error) {
		return h.LibVersion()
	})
}

// ConnVersion returns the hypervisor version behind the connection. The
// lookup happens once; a failure is remembered as 0.
func (c *Connection) ConnVersion() uint64 {
	if v := c.res.Flags.ConnVersion; v != nil {
		return *v
	}
	return c.fetchVersion(&c.connVersion, "conn", func(h Handle) (uint64, error) {
		return h.Version()
	})
}

// fetchVersion memoizes get's result in *slot. Without a live handle it
// returns 0 and leaves *slot alone so a later open can still look it up.
func (c *Connection) fetchVersion(slot **uint64, kind string, get func(Handle) (uint64, error)) uint64 {
	if *slot != nil {
		return **slot
	}
	if c.handle == nil {
		c.logger.Debug().Str("kind", kind).Msg("version requested on closed connection")
		return 0
	}

	v, err := get(c.handle)
	if err != nil {
		c.logger.Debug().Err(err).Str("kind", kind).Msg("version lookup failed, treating as unknown")
		metrics.RecordVersionFailure(kind)
		v = 0
	}
	*slot = &v
	return v
}
