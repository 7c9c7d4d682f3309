package libvirt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog/log"

	"github.com/jbweber/virtconn/internal/uri"
)

const (
	// DefaultSocket is the system daemon socket (qemu:///system and friends).
	DefaultSocket = "/var/run/libvirt/libvirt-sock"

	defaultTimeout = 5 * time.Second
)

// ErrUnsupportedTransport is returned by Open for URI transports the client
// cannot speak (for example ext or libssh).
var ErrUnsupportedTransport = errors.New("unsupported transport")

// Client is an open connection to a libvirt daemon. It exposes only the
// operations the connection layer consumes.
type Client struct {
	l   *libvirt.Libvirt
	uri string

	mu        sync.Mutex
	keepAlive *keepAlive
	closed    bool
	dead      atomic.Bool // keep-alive gave up and disconnected
}

// Dialer opens Clients. The zero value dials with default settings.
type Dialer struct {
	// Timeout bounds establishing the transport. Zero means 5 seconds.
	Timeout time.Duration
	// SocketPath overrides the local daemon socket for URIs without a host.
	SocketPath string
	// KnownHostsPath overrides ~/.ssh/known_hosts for ssh transports.
	KnownHostsPath string
	// InsecureIgnoreHostKey disables ssh host key verification.
	InsecureIgnoreHostKey bool
	// PKIPath overrides the libvirt PKI layout for tls transports.
	PKIPath string
}

// Open connects to the daemon named by rawURI. The transport is chosen from
// the URI; the daemon receives the URI with transport and host stripped.
// An empty rawURI opens the local daemon and lets it pick its default
// hypervisor.
//
// Open honors ctx while the transport is being established. A connection
// that completes after ctx is done is closed again.
func (d Dialer) Open(ctx context.Context, rawURI string, auth Auth) (*Client, error) {
	info, err := uri.Parse(rawURI)
	if err != nil {
		return nil, err
	}

	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		c, err := d.open(info, auth)
		resultCh <- result{client: c, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if res := <-resultCh; res.client != nil {
				_, _ = res.client.Close()
			}
		}()
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

func (d Dialer) open(info *uri.Info, auth Auth) (*Client, error) {
	sd, err := d.socketDialer(info, auth)
	if err != nil {
		return nil, err
	}

	l := libvirt.NewWithDialer(sd)
	if err := l.ConnectToURI(libvirt.ConnectURI(info.DaemonURI())); err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt at %q: %w", info.Raw, err)
	}

	log.Debug().
		Str("uri", info.Raw).
		Str("transport", info.EffectiveTransport()).
		Msg("connected to libvirt")

	return &Client{l: l, uri: info.Raw}, nil
}

func (d Dialer) timeout() time.Duration {
	if d.Timeout == 0 {
		return defaultTimeout
	}
	return d.Timeout
}

// Close stops keep-alive and disconnects. It returns 0 on success and -1
// when the disconnect failed. Closing twice is a no-op, and so is closing
// a client keep-alive already disconnected.
func (c *Client) Close() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.l == nil {
		return 0, nil
	}
	c.closed = true

	if c.keepAlive != nil {
		c.keepAlive.stop()
		c.keepAlive = nil
	}
	if c.dead.Load() {
		return 0, nil
	}

	if err := c.l.Disconnect(); err != nil {
		return -1, fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}
	return 0, nil
}

// Ping verifies the connection is still alive.
func (c *Client) Ping() error {
	return ping(c.l)
}

func ping(l *libvirt.Libvirt) error {
	if l == nil {
		return fmt.Errorf("client not connected")
	}
	if _, err := l.ConnectGetLibVersion(); err != nil {
		return fmt.Errorf("libvirt connection is dead: %w", err)
	}
	return nil
}

// URI returns the canonical URI the daemon reports for this connection.
func (c *Client) URI() (string, error) {
	u, err := c.l.ConnectGetUri()
	if err != nil {
		return "", fmt.Errorf("failed to get connection URI: %w", err)
	}
	return u, nil
}

// Capabilities returns the host capabilities XML document.
func (c *Client) Capabilities() (string, error) {
	caps, err := c.l.ConnectGetCapabilities()
	if err != nil {
		return "", fmt.Errorf("failed to get capabilities: %w", err)
	}
	return caps, nil
}

// LibVersion returns the daemon's libvirt version.
func (c *Client) LibVersion() (uint64, error) {
	v, err := c.l.ConnectGetLibVersion()
	if err != nil {
		return 0, fmt.Errorf("failed to get library version: %w", err)
	}
	return v, nil
}

// Version returns the hypervisor version.
func (c *Client) Version() (uint64, error) {
	v, err := c.l.ConnectGetVersion()
	if err != nil {
		return 0, fmt.Errorf("failed to get hypervisor version: %w", err)
	}
	return v, nil
}

// ListAllDomains lists active and inactive domains.
func (c *Client) ListAllDomains() ([]libvirt.Domain, error) {
	domains, _, err := c.l.ConnectListAllDomains(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	return domains, nil
}

// DomainXMLDesc returns the domain's XML description.
func (c *Client) DomainXMLDesc(d libvirt.Domain) (string, error) {
	xml, err := c.l.DomainGetXMLDesc(d, 0)
	if err != nil {
		return "", fmt.Errorf("failed to describe domain %s: %w", d.Name, err)
	}
	return xml, nil
}

// DomainLookupByName looks up a domain by name.
func (c *Client) DomainLookupByName(name string) (libvirt.Domain, error) {
	d, err := c.l.DomainLookupByName(name)
	if err != nil {
		return libvirt.Domain{}, fmt.Errorf("failed to look up domain %s: %w", name, err)
	}
	return d, nil
}

// DomainHasManagedSaveImage reports whether the domain has a managed save image.
func (c *Client) DomainHasManagedSaveImage(d libvirt.Domain) (bool, error) {
	has, err := c.l.DomainHasManagedSaveImage(d, 0)
	if err != nil {
		return false, fmt.Errorf("failed to check managed save image of domain %s: %w", d.Name, err)
	}
	return has != 0, nil
}

// DomainState returns the domain's state and the reason for it.
func (c *Client) DomainState(d libvirt.Domain) (int32, int32, error) {
	state, reason, err := c.l.DomainGetState(d, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get state of domain %s: %w", d.Name, err)
	}
	return state, reason, nil
}

// ListAllStoragePools lists active and inactive storage pools.
func (c *Client) ListAllStoragePools() ([]libvirt.StoragePool, error) {
	pools, _, err := c.l.ConnectListAllStoragePools(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage pools: %w", err)
	}
	return pools, nil
}

// StoragePoolXMLDesc returns the pool's XML description.
func (c *Client) StoragePoolXMLDesc(p libvirt.StoragePool) (string, error) {
	xml, err := c.l.StoragePoolGetXMLDesc(p, 0)
	if err != nil {
		return "", fmt.Errorf("failed to describe storage pool %s: %w", p.Name, err)
	}
	return xml, nil
}

// StoragePoolLookupByName looks up a pool by name.
func (c *Client) StoragePoolLookupByName(name string) (libvirt.StoragePool, error) {
	p, err := c.l.StoragePoolLookupByName(name)
	if err != nil {
		return libvirt.StoragePool{}, fmt.Errorf("failed to look up storage pool %s: %w", name, err)
	}
	return p, nil
}

// StoragePoolState returns the pool's run state.
func (c *Client) StoragePoolState(p libvirt.StoragePool) (libvirt.StoragePoolState, error) {
	state, _, _, _, err := c.l.StoragePoolGetInfo(p)
	if err != nil {
		return 0, fmt.Errorf("failed to get storage pool %s info: %w", p.Name, err)
	}
	return libvirt.StoragePoolState(state), nil
}

// ListAllVolumes lists the volumes of a pool.
func (c *Client) ListAllVolumes(p libvirt.StoragePool) ([]libvirt.StorageVol, error) {
	vols, _, err := c.l.StoragePoolListAllVolumes(p, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes in pool %s: %w", p.Name, err)
	}
	return vols, nil
}

// StorageVolXMLDesc returns the volume's XML description.
func (c *Client) StorageVolXMLDesc(v libvirt.StorageVol) (string, error) {
	xml, err := c.l.StorageVolGetXMLDesc(v, 0)
	if err != nil {
		return "", fmt.Errorf("failed to describe volume %s: %w", v.Name, err)
	}
	return xml, nil
}

// ListAllNodeDevices lists host devices.
func (c *Client) ListAllNodeDevices() ([]libvirt.NodeDevice, error) {
	devs, _, err := c.l.ConnectListAllNodeDevices(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list node devices: %w", err)
	}
	return devs, nil
}

// NodeDeviceXMLDesc returns the device's XML description.
func (c *Client) NodeDeviceXMLDesc(d libvirt.NodeDevice) (string, error) {
	xml, err := c.l.NodeDeviceGetXMLDesc(d.Name, 0)
	if err != nil {
		return "", fmt.Errorf("failed to describe node device %s: %w", d.Name, err)
	}
	return xml, nil
}
