package objects

import (
	"fmt"

	"libvirt.org/go/libvirtxml"
)

// Kind names the enumerable object categories.
type Kind string

const (
	KindGuest         Kind = "guest"
	KindStoragePool   Kind = "pool"
	KindStorageVolume Kind = "volume"
	KindNodeDevice    Kind = "nodedev"
)

// ConnRef is a non-owning reference from a wrapped object back to the
// connection that produced it. It is an opaque identifier; resolve it with
// conn.Resolve. A ref whose connection has been closed no longer resolves.
type ConnRef string

// Object is the behavior shared by every wrapped object.
type Object interface {
	Kind() Kind
	Name() string
	UUID() string
	// Summary is a short human readable description used in listings.
	Summary() string
	// XML returns the description the object was built from.
	XML() string
	// Conn returns the reference to the originating connection.
	Conn() ConnRef
}

// base carries the fields every wrapper has.
type base struct {
	ref ConnRef
	xml string
}

func (b *base) XML() string   { return b.xml }
func (b *base) Conn() ConnRef { return b.ref }

// Guest wraps a domain description.
type Guest struct {
	base
	def libvirtxml.Domain
}

// NewGuest parses a domain XML description.
func NewGuest(ref ConnRef, xml string) (*Guest, error) {
	g := &Guest{base: base{ref: ref, xml: xml}}
	if err := g.def.Unmarshal(xml); err != nil {
		return nil, fmt.Errorf("failed to parse domain XML: %w", err)
	}
	return g, nil
}

func (g *Guest) Kind() Kind   { return KindGuest }
func (g *Guest) Name() string { return g.def.Name }
func (g *Guest) UUID() string { return g.def.UUID }

// Def returns the parsed definition. Callers must not modify it.
func (g *Guest) Def() *libvirtxml.Domain { return &g.def }

// Type returns the domain type (kvm, qemu, xen, ...).
func (g *Guest) Type() string { return g.def.Type }

func (g *Guest) Summary() string {
	var vcpus uint
	if g.def.VCPU != nil {
		vcpus = g.def.VCPU.Value
	}
	var memory string
	if g.def.Memory != nil {
		unit := g.def.Memory.Unit
		if unit == "" {
			unit = "KiB"
		}
		memory = fmt.Sprintf("%d %s", g.def.Memory.Value, unit)
	}
	return fmt.Sprintf("type=%s vcpus=%d memory=%s", g.def.Type, vcpus, memory)
}

// StoragePool wraps a storage pool description.
type StoragePool struct {
	base
	def libvirtxml.StoragePool
}

// NewStoragePool parses a storage pool XML description.
func NewStoragePool(ref ConnRef, xml string) (*StoragePool, error) {
	p := &StoragePool{base: base{ref: ref, xml: xml}}
	if err := p.def.Unmarshal(xml); err != nil {
		return nil, fmt.Errorf("failed to parse storage pool XML: %w", err)
	}
	return p, nil
}

func (p *StoragePool) Kind() Kind   { return KindStoragePool }
func (p *StoragePool) Name() string { return p.def.Name }
func (p *StoragePool) UUID() string { return p.def.UUID }

// Def returns the parsed definition. Callers must not modify it.
func (p *StoragePool) Def() *libvirtxml.StoragePool { return &p.def }

// Type returns the pool backend type (dir, logical, netfs, ...).
func (p *StoragePool) Type() string { return p.def.Type }

// TargetPath returns the pool's target path, empty if it has none.
func (p *StoragePool) TargetPath() string {
	if p.def.Target == nil {
		return ""
	}
	return p.def.Target.Path
}

func (p *StoragePool) Summary() string {
	return fmt.Sprintf("type=%s path=%s", p.def.Type, p.TargetPath())
}

// StorageVolume wraps a storage volume description.
type StorageVolume struct {
	base
	pool string
	def  libvirtxml.StorageVolume
}

// NewStorageVolume parses a volume XML description. Volume XML does not
// carry the pool name, so the caller supplies it.
func NewStorageVolume(ref ConnRef, pool, xml string) (*StorageVolume, error) {
	v := &StorageVolume{base: base{ref: ref, xml: xml}, pool: pool}
	if err := v.def.Unmarshal(xml); err != nil {
		return nil, fmt.Errorf("failed to parse storage volume XML: %w", err)
	}
	return v, nil
}

func (v *StorageVolume) Kind() Kind { return KindStorageVolume }
func (v *StorageVolume) Name() string {
	return v.def.Name
}

// UUID returns the volume key, volumes have no UUID.
func (v *StorageVolume) UUID() string { return v.def.Key }

// Def returns the parsed definition. Callers must not modify it.
func (v *StorageVolume) Def() *libvirtxml.StorageVolume { return &v.def }

// Pool returns the name of the pool the volume belongs to.
func (v *StorageVolume) Pool() string { return v.pool }

// Path returns the volume's target path.
func (v *StorageVolume) Path() string {
	if v.def.Target == nil {
		return ""
	}
	return v.def.Target.Path
}

// Capacity returns the capacity in bytes as reported, without unit conversion.
func (v *StorageVolume) Capacity() uint64 {
	if v.def.Capacity == nil {
		return 0
	}
	return v.def.Capacity.Value
}

func (v *StorageVolume) Summary() string {
	return fmt.Sprintf("pool=%s path=%s", v.pool, v.Path())
}

// NodeDevice wraps a host device description.
type NodeDevice struct {
	base
	def libvirtxml.NodeDevice
}

// NewNodeDevice parses a node device XML description.
func NewNodeDevice(ref ConnRef, xml string) (*NodeDevice, error) {
	d := &NodeDevice{base: base{ref: ref, xml: xml}}
	if err := d.def.Unmarshal(xml); err != nil {
		return nil, fmt.Errorf("failed to parse node device XML: %w", err)
	}
	return d, nil
}

func (d *NodeDevice) Kind() Kind   { return KindNodeDevice }
func (d *NodeDevice) Name() string { return d.def.Name }

// UUID returns an empty string, node devices are identified by name.
func (d *NodeDevice) UUID() string { return "" }

// Def returns the parsed definition. Callers must not modify it.
func (d *NodeDevice) Def() *libvirtxml.NodeDevice { return &d.def }

// Parent returns the parent device name.
func (d *NodeDevice) Parent() string { return d.def.Parent }

// DeviceType returns the libvirt capability type of the device.
func (d *NodeDevice) DeviceType() string {
	c := d.def.Capability
	switch {
	case c.System != nil:
		return "system"
	case c.PCI != nil:
		return "pci"
	case c.USBDevice != nil:
		return "usb_device"
	case c.USB != nil:
		return "usb"
	case c.Net != nil:
		return "net"
	case c.SCSIHost != nil:
		return "scsi_host"
	case c.SCSI != nil:
		return "scsi"
	case c.Storage != nil:
		return "storage"
	case c.DRM != nil:
		return "drm"
	case c.MDev != nil:
		return "mdev"
	default:
		return "unknown"
	}
}

func (d *NodeDevice) Summary() string {
	return fmt.Sprintf("type=%s parent=%s", d.DeviceType(), d.def.Parent)
}

var (
	_ Object = (*Guest)(nil)
	_ Object = (*StoragePool)(nil)
	_ Object = (*StorageVolume)(nil)
	_ Object = (*NodeDevice)(nil)
)
