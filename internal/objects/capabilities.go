package objects

import (
	"fmt"

	"libvirt.org/go/libvirtxml"
)

// Capabilities wraps the host capabilities document.
type Capabilities struct {
	base
	def libvirtxml.Caps
}

// GuestCap is one guest entry of the capabilities document flattened.
type GuestCap struct {
	OSType   string
	Arch     string
	Emulator string
	Domains  []string
}

// NewCapabilities parses a capabilities XML document.
func NewCapabilities(ref ConnRef, xml string) (*Capabilities, error) {
	c := &Capabilities{base: base{ref: ref, xml: xml}}
	if err := c.def.Unmarshal(xml); err != nil {
		return nil, fmt.Errorf("failed to parse capabilities XML: %w", err)
	}
	return c, nil
}

// Def returns the parsed document. Callers must not modify it.
func (c *Capabilities) Def() *libvirtxml.Caps { return &c.def }

// HostArch returns the host CPU architecture.
func (c *Capabilities) HostArch() string {
	if c.def.Host.CPU == nil {
		return ""
	}
	return c.def.Host.CPU.Arch
}

// HostUUID returns the host UUID.
func (c *Capabilities) HostUUID() string {
	return c.def.Host.UUID
}

// Guests returns the guest capabilities in document order.
func (c *Capabilities) Guests() []GuestCap {
	out := make([]GuestCap, 0, len(c.def.Guests))
	for _, g := range c.def.Guests {
		gc := GuestCap{
			OSType:   g.OSType,
			Arch:     g.Arch.Name,
			Emulator: g.Arch.Emulator,
			Domains:  make([]string, 0, len(g.Arch.Domains)),
		}
		for _, d := range g.Arch.Domains {
			gc.Domains = append(gc.Domains, d.Type)
		}
		out = append(out, gc)
	}
	return out
}

// SupportsGuest reports whether the host can run guests of the given OS
// type (hvm, xen, exe) on arch. An empty arch matches any.
func (c *Capabilities) SupportsGuest(osType, arch string) bool {
	for _, g := range c.def.Guests {
		if g.OSType != osType {
			continue
		}
		if arch == "" || g.Arch.Name == arch {
			return true
		}
	}
	return false
}
