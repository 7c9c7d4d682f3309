package conn

import (
	"context"

	golibvirt "github.com/digitalocean/go-libvirt"

	"github.com/jbweber/virtconn/internal/endpoint"
	"github.com/jbweber/virtconn/internal/libvirt"
)

// Handle is the live connection to a daemon, listing only the operations
// the caches consume. *libvirt.Client satisfies it.
type Handle interface {
	// Close releases the connection. The int is the close status, 0 on success.
	Close() (int, error)
	URI() (string, error)
	Capabilities() (string, error)
	LibVersion() (uint64, error)
	Version() (uint64, error)

	ListAllDomains() ([]golibvirt.Domain, error)
	DomainXMLDesc(d golibvirt.Domain) (string, error)
	DomainLookupByName(name string) (golibvirt.Domain, error)
	DomainHasManagedSaveImage(d golibvirt.Domain) (bool, error)
	// DomainState returns the domain's state and the reason for it.
	DomainState(d golibvirt.Domain) (int32, int32, error)

	ListAllStoragePools() ([]golibvirt.StoragePool, error)
	StoragePoolXMLDesc(p golibvirt.StoragePool) (string, error)
	StoragePoolLookupByName(name string) (golibvirt.StoragePool, error)
	StoragePoolState(p golibvirt.StoragePool) (golibvirt.StoragePoolState, error)
	ListAllVolumes(p golibvirt.StoragePool) ([]golibvirt.StorageVol, error)
	StorageVolXMLDesc(v golibvirt.StorageVol) (string, error)

	ListAllNodeDevices() ([]golibvirt.NodeDevice, error)
	NodeDeviceXMLDesc(d golibvirt.NodeDevice) (string, error)
}

// KeepAliver is implemented by handles that support keep-alive.
type KeepAliver interface {
	SetKeepAlive(interval, count int) error
}

// Opener opens a Handle for uri.
type Opener func(ctx context.Context, uri string, auth libvirt.Auth) (Handle, error)

// DialerOpener returns an Opener backed by d.
func DialerOpener(d libvirt.Dialer) Opener {
	return func(ctx context.Context, uri string, auth libvirt.Auth) (Handle, error) {
		c, err := d.Open(ctx, uri, auth)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

var _ Handle = (*libvirt.Client)(nil)

// overrideHandle serves the values a synthetic endpoint pins in place of
// the real handle's answers. Everything else goes to the real handle.
type overrideHandle struct {
	Handle
	o endpoint.Overrides
}

func wrapOverrides(h Handle, o endpoint.Overrides) Handle {
	return &overrideHandle{Handle: h, o: o}
}

func (h *overrideHandle) URI() (string, error) {
	if h.o.URI != "" {
		return h.o.URI, nil
	}
	return h.Handle.URI()
}

func (h *overrideHandle) Capabilities() (string, error) {
	if h.o.CapsXML != "" {
		return h.o.CapsXML, nil
	}
	return h.Handle.Capabilities()
}

func (h *overrideHandle) LibVersion() (uint64, error) {
	if h.o.LibVersion != nil {
		return *h.o.LibVersion, nil
	}
	return h.Handle.LibVersion()
}

func (h *overrideHandle) Version() (uint64, error) {
	if h.o.ConnVersion != nil {
		return *h.o.ConnVersion, nil
	}
	return h.Handle.Version()
}

func (h *overrideHandle) SetKeepAlive(interval, count int) error {
	if ka, ok := h.Handle.(KeepAliver); ok {
		return ka.SetKeepAlive(interval, count)
	}
	return nil
}
