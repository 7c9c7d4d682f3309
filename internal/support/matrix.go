package support

import (
	"fmt"
)

// AllDrivers is the wildcard key in Rule.HVVersion and Rule.HVLibVersion.
const AllDrivers = "all"

// Target is what a rule is evaluated against. The connection facade
// satisfies it.
type Target interface {
	// Driver returns the hypervisor driver of the connection (qemu, xen, test, ...).
	Driver() string
	// LocalLibraryVersion returns the encoded local libvirt version, 0 if unknown.
	LocalLibraryVersion() uint64
	// DaemonVersion returns the encoded libvirt version of the daemon, 0 if unknown.
	DaemonVersion() uint64
	// ConnVersion returns the encoded hypervisor version, 0 if unknown.
	ConnVersion() uint64
}

// Probe is a runtime check run before any version comparison. data is the
// object the caller is asking about, or the Target itself when the caller
// passed none.
type Probe func(t Target, data any) bool

// Rule describes when a feature is available. All populated conditions must
// hold.
type Rule struct {
	// Version is the minimum local libvirt version.
	Version uint64
	// HVVersion maps a driver to the minimum hypervisor version. A driver
	// missing from a non-empty map is unsupported unless AllDrivers is present.
	HVVersion map[string]uint64
	// HVLibVersion maps a driver to the minimum daemon libvirt version, with
	// the same wildcard semantics as HVVersion.
	HVLibVersion map[string]uint64
	// Probe is an optional runtime check.
	Probe Probe
}

// Matrix maps features to their rules.
type Matrix map[Feature]Rule

// Evaluate reports whether feature f is supported by t. Unknown features
// are unsupported.
func (m Matrix) Evaluate(t Target, f Feature, data any) bool {
	rule, ok := m[f]
	if !ok {
		return false
	}
	return rule.evaluate(t, data)
}

func (r Rule) evaluate(t Target, data any) bool {
	if r.Probe != nil && !r.Probe(t, data) {
		return false
	}

	if r.Version > t.LocalLibraryVersion() {
		return false
	}

	driver := t.Driver()
	if !driverVersionOK(r.HVVersion, driver, t.ConnVersion) {
		return false
	}
	if !driverVersionOK(r.HVLibVersion, driver, t.DaemonVersion) {
		return false
	}

	return true
}

// driverVersionOK only calls actual when a version comparison is needed,
// which keeps remote version lookups off the path of rules that don't
// care about them.
func driverVersionOK(required map[string]uint64, driver string, actual func() uint64) bool {
	if len(required) == 0 {
		return true
	}
	want, ok := required[driver]
	if !ok {
		_, all := required[AllDrivers]
		return all
	}
	return actual() >= want
}

// CheckVersion reports whether the daemon version of t is at least version.
func CheckVersion(t Target, version string) (bool, error) {
	want, err := ParseVersion(version)
	if err != nil {
		return false, fmt.Errorf("failed to check version: %w", err)
	}
	return t.DaemonVersion() >= want, nil
}

// ManagedSaveChecker is implemented by objects that can report whether a
// managed save image exists.
type ManagedSaveChecker interface {
	HasManagedSaveImage() (bool, error)
}

// StateQuerier is implemented by objects that can report their run state.
type StateQuerier interface {
	State() (int32, int32, error)
}

// DefaultMatrix returns the built-in support matrix. Each call returns a
// fresh map so callers may extend it.
func DefaultMatrix() Matrix {
	v := MustParseVersion
	return Matrix{
		ConnStream:              {Version: v("0.9.3")},
		ConnKeepAlive:           {Version: v("0.9.8")},
		ConnListAllDomains:      {Version: v("0.9.13")},
		ConnListAllStoragePools: {Version: v("0.10.2")},
		ConnListAllNodeDevices:  {Version: v("0.10.2")},
		ConnDomainCapabilities: {
			Version:      v("1.2.7"),
			HVLibVersion: map[string]uint64{"qemu": v("1.2.7"), "test": 0},
		},
		ConnAutoSocket: {Version: v("1.0.6")},
		ConnPMDisable: {
			Version:   v("0.10.2"),
			HVVersion: map[string]uint64{"qemu": v("1.2.0"), "test": 0},
		},
		ConnQCOW2LazyRefcounts: {
			Version:   v("1.1.0"),
			HVVersion: map[string]uint64{"qemu": v("1.2.0"), "test": 0},
		},
		ConnVirtioMMIO: {
			Version:   v("1.1.2"),
			HVVersion: map[string]uint64{"qemu": v("1.6.0"), "test": 0},
		},
		ConnQEMUXHCI: {
			Version:   v("3.3.0"),
			HVVersion: map[string]uint64{"qemu": v("2.9.0"), "test": 0},
		},
		ConnVNCNoneAuth: {
			HVVersion: map[string]uint64{"qemu": v("2.9.0"), "test": 0},
		},
		ConnVMGenID: {
			Version:      v("4.4.0"),
			HVVersion:    map[string]uint64{"qemu": v("2.4.0"), "test": 0},
			HVLibVersion: map[string]uint64{"qemu": v("4.4.0"), "test": 0},
		},
		ConnFirmwareAuto: {
			Version:      v("5.2.0"),
			HVLibVersion: map[string]uint64{"qemu": v("5.2.0"), "test": v("5.3.0")},
		},
		DomainManagedSave: {
			Version: v("0.8.0"),
			Probe: func(_ Target, data any) bool {
				checker, ok := data.(ManagedSaveChecker)
				if !ok {
					return false
				}
				_, err := checker.HasManagedSaveImage()
				return err == nil
			},
		},
		DomainState: {
			Version: v("0.9.2"),
			Probe: func(_ Target, data any) bool {
				querier, ok := data.(StateQuerier)
				if !ok {
					return false
				}
				_, _, err := querier.State()
				return err == nil
			},
		},
	}
}
