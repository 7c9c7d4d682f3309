package support

import "fmt"

// Feature identifies a capability whose availability depends on the
// hypervisor driver and on library, daemon or hypervisor versions.
type Feature int

const (
	// ConnStream is virStream support, needed to upload install media to a
	// remote host.
	ConnStream Feature = iota
	ConnKeepAlive
	ConnListAllDomains
	ConnListAllStoragePools
	ConnListAllNodeDevices
	ConnDomainCapabilities
	ConnAutoSocket
	ConnPMDisable
	ConnQCOW2LazyRefcounts
	ConnVirtioMMIO
	ConnQEMUXHCI
	ConnVNCNoneAuth
	ConnVMGenID
	ConnFirmwareAuto
	// DomainManagedSave and DomainState are evaluated against a domain
	// passed as data.
	DomainManagedSave
	DomainState

	featureCount
)

var featureNames = [...]string{
	ConnStream:              "conn-stream",
	ConnKeepAlive:           "conn-keepalive",
	ConnListAllDomains:      "conn-list-all-domains",
	ConnListAllStoragePools: "conn-list-all-storage-pools",
	ConnListAllNodeDevices:  "conn-list-all-node-devices",
	ConnDomainCapabilities:  "conn-domain-capabilities",
	ConnAutoSocket:          "conn-autosocket",
	ConnPMDisable:           "conn-pm-disable",
	ConnQCOW2LazyRefcounts:  "conn-qcow2-lazy-refcounts",
	ConnVirtioMMIO:          "conn-virtio-mmio",
	ConnQEMUXHCI:            "conn-qemu-xhci",
	ConnVNCNoneAuth:         "conn-vnc-none-auth",
	ConnVMGenID:             "conn-vmgenid",
	ConnFirmwareAuto:        "conn-firmware-auto",
	DomainManagedSave:       "domain-managed-save",
	DomainState:             "domain-state",
}

func (f Feature) String() string {
	if f >= 0 && f < featureCount {
		return featureNames[f]
	}
	return fmt.Sprintf("feature(%d)", int(f))
}

// Features returns every defined feature in declaration order.
func Features() []Feature {
	out := make([]Feature, 0, featureCount)
	for f := Feature(0); f < featureCount; f++ {
		out = append(out, f)
	}
	return out
}

// ParseFeature looks a feature up by its String() name.
func ParseFeature(name string) (Feature, error) {
	for f := Feature(0); f < featureCount; f++ {
		if featureNames[f] == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown feature: %s", name)
}
