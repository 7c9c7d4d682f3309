package conn

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jbweber/virtconn/internal/endpoint"
	"github.com/jbweber/virtconn/internal/libvirt"
	"github.com/jbweber/virtconn/internal/objects"
	"github.com/jbweber/virtconn/internal/support"
	"github.com/jbweber/virtconn/internal/uri"
)

var (
	// ErrNotOpen is returned when an operation needs the live handle and the
	// connection is not open.
	ErrNotOpen = errors.New("connection is not open")
	// ErrAlreadyOpen is returned by Open on an open connection.
	ErrAlreadyOpen = errors.New("connection is already open")
)

// Connection is a caching facade over one libvirt connection.
//
// A Connection is not safe for concurrent use. Callers sharing one across
// goroutines must serialize access.
type Connection struct {
	res     *endpoint.Resolution
	uri     *uri.Info // drives the URI predicates
	realURI *uri.Info // what was actually opened

	handle     Handle
	negotiated string // URI reported by the daemon when opened with an empty address
	ref        objects.ConnRef

	caps          *objects.Capabilities
	daemonVersion *uint64
	connVersion   *uint64

	domains   listCache[*objects.Guest]
	pools     listCache[*objects.StoragePool]
	volumes   listCache[*objects.StorageVolume]
	nodedevs  listCache[*objects.NodeDevice]
	overrides Overrides

	supportCache map[support.Feature]bool

	opener           Opener
	logger           zerolog.Logger
	matrix           support.Matrix
	localVersion     func() uint64
	fetchConcurrency int
}

// New returns an unopened Connection for addr. addr may be empty to let the
// daemon pick its default hypervisor, or a synthetic address (see package
// endpoint). Malformed synthetic addresses fail here; New performs no I/O
// beyond reading a synthetic capabilities file.
func New(addr string, opts ...Option) (*Connection, error) {
	res, err := endpoint.Resolve(addr)
	if err != nil {
		return nil, err
	}

	display, err := uri.Parse(res.DisplayURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection URI: %w", err)
	}
	opened, err := uri.Parse(res.OpenURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection URI: %w", err)
	}

	c := &Connection{
		res:              res,
		uri:              display,
		realURI:          opened,
		supportCache:     make(map[support.Feature]bool),
		opener:           DialerOpener(libvirt.Dialer{}),
		logger:           log.With().Str("component", "conn").Logger(),
		matrix:           support.DefaultMatrix(),
		localVersion:     libvirt.LibraryVersion,
		fetchConcurrency: defaultFetchConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Open acquires the live handle. cb is asked for credentials the transport
// needs, with data passed through untouched. Open on an open connection
// returns ErrAlreadyOpen.
func (c *Connection) Open(ctx context.Context, cb libvirt.CredentialCallback, data any) error {
	if c.handle != nil {
		return ErrAlreadyOpen
	}

	auth := libvirt.Auth{
		CredTypes: slices.Clone(libvirt.DefaultCredentialTypes),
		Callback:  cb,
		Data:      data,
	}
	h, err := c.opener(ctx, c.res.OpenURI, auth)
	if err != nil {
		return fmt.Errorf("failed to open connection to %q: %w", c.res.OpenURI, err)
	}

	if c.res.Synthetic {
		h = wrapOverrides(h, c.res.Overrides)
	}

	if c.res.Input == "" {
		if err := c.adoptNegotiatedURI(h); err != nil {
			if _, cerr := h.Close(); cerr != nil {
				c.logger.Debug().Err(cerr).Msg("close after failed URI lookup")
			}
			return fmt.Errorf("failed to determine connection URI: %w", err)
		}
	}

	c.handle = h
	c.ref = register(c)

	c.logger.Debug().
		Str("uri", c.URI()).
		Bool("synthetic", c.res.Synthetic).
		Msg("connection opened")
	return nil
}

// adoptNegotiatedURI asks the daemon which URI it picked for an empty
// address and re-derives the URI predicates from it.
func (c *Connection) adoptNegotiatedURI(h Handle) error {
	negotiated, err := h.URI()
	if err != nil {
		return err
	}
	info, err := uri.Parse(negotiated)
	if err != nil {
		return err
	}
	c.negotiated = negotiated
	c.uri = info
	c.realURI = info
	return nil
}

// Close releases the live handle and returns the driver's close status, 0
// on success. A failing close is logged, not returned. The object caches,
// the capabilities snapshot and the negotiated URI are dropped; the display
// URI and flags survive.
// Closing a closed connection returns 0.
func (c *Connection) Close() int {
	if c.handle == nil {
		return 0
	}

	status, err := c.handle.Close()
	if err != nil {
		c.logger.Warn().Err(err).Str("uri", c.URI()).Msg("connection close reported an error")
		if status == 0 {
			status = -1
		}
	}

	c.handle = nil
	c.negotiated = ""
	c.caps = nil
	c.clearFetchCache()
	unregister(c.ref)
	c.ref = ""

	return status
}

// IsOpen reports whether the live handle is held.
func (c *Connection) IsOpen() bool { return c.handle != nil }

// IsClosed reports whether the live handle is absent.
func (c *Connection) IsClosed() bool { return c.handle == nil }

// Ref returns the reference wrapped objects carry while the connection is
// open, empty otherwise.
func (c *Connection) Ref() objects.ConnRef { return c.ref }

// URI returns the negotiated URI if the connection was opened with an
// empty address, otherwise the display URI.
func (c *Connection) URI() string {
	if c.negotiated != "" {
		return c.negotiated
	}
	return c.res.DisplayURI
}

// FakeConnPredictable reports whether a synthetic endpoint asked for
// predictable output.
func (c *Connection) FakeConnPredictable() bool { return c.res.Flags.Predictable }

// IsSynthetic reports whether the connection was built from a synthetic address.
func (c *Connection) IsSynthetic() bool { return c.res.Synthetic }

// SetKeepAlive configures keep-alive on the live handle. Handles without
// keep-alive support ignore it, and so does a closed connection.
func (c *Connection) SetKeepAlive(interval, count int) error {
	ka, ok := c.handle.(KeepAliver)
	if !ok {
		return nil
	}
	if err := ka.SetKeepAlive(interval, count); err != nil {
		return fmt.Errorf("failed to set keep-alive: %w", err)
	}
	return nil
}

// IsRemote reports whether the endpoint is on another host.
func (c *Connection) IsRemote() bool {
	return c.res.Flags.Remote || c.uri.IsRemote()
}

// IsSessionURI reports whether the endpoint is a per-user session daemon.
func (c *Connection) IsSessionURI() bool {
	return c.res.Flags.Session || c.uri.Path == "/session"
}

func (c *Connection) URIHostname() string  { return c.uri.Hostname }
func (c *Connection) URIPort() string      { return c.uri.Port }
func (c *Connection) URIUsername() string  { return c.uri.Username }
func (c *Connection) URITransport() string { return c.uri.EffectiveTransport() }
func (c *Connection) URIPath() string      { return c.uri.Path }
func (c *Connection) URIDriver() string    { return c.uri.Scheme }

// Driver returns the hypervisor driver name. It is the support.Target view
// of URIDriver.
func (c *Connection) Driver() string { return c.uri.Scheme }

func (c *Connection) IsQemu() bool { return c.uri.HasDriverPrefix("qemu") }

func (c *Connection) IsQemuSystem() bool {
	return c.IsQemu() && c.uri.Path == "/system"
}

func (c *Connection) IsQemuSession() bool {
	return c.IsQemu() && c.IsSessionURI()
}

// IsReallyTest reports whether the URI actually opened is the test driver,
// even when a synthetic endpoint reports something else.
func (c *Connection) IsReallyTest() bool { return c.realURI.Scheme == "test" }

func (c *Connection) IsTest() bool   { return c.uri.HasDriverPrefix("test") }
func (c *Connection) IsXen() bool    { return c.uri.HasDriverPrefix("xen", "libxl") }
func (c *Connection) IsLXC() bool    { return c.uri.HasDriverPrefix("lxc") }
func (c *Connection) IsOpenVZ() bool { return c.uri.HasDriverPrefix("openvz") }
func (c *Connection) IsVZ() bool     { return c.uri.HasDriverPrefix("vz", "parallels") }

// IsContainer reports whether the driver runs containers rather than VMs.
func (c *Connection) IsContainer() bool { return c.IsLXC() || c.IsOpenVZ() }
