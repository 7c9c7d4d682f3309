package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	golibvirt "github.com/digitalocean/go-libvirt"

	"github.com/jbweber/virtconn/internal/libvirt"
)

// mockHandle is a scripted Handle that counts calls. Describe calls run
// concurrently, so all state is behind mu.
type mockHandle struct {
	mu sync.Mutex

	uri         string
	uriErr      error
	caps        string
	capsErr     error
	libVersion  uint64
	libErr      error
	version     uint64
	versionErr  error
	closeStatus int
	closeErr    error

	domains  []golibvirt.Domain
	pools    []golibvirt.StoragePool
	stopped  map[string]bool                  // pool name -> not running
	vols     map[string][]golibvirt.StorageVol // pool name -> volumes
	nodedevs []golibvirt.NodeDevice
	failXML  map[string]bool  // object name -> describe fails
	listErr  map[string]error // list call -> error
	domErr   map[string]error // domain call -> error
	managed  map[string]bool  // domain name -> has managed save image

	calls map[string]int
	ka    *keepAliveCall
}

type keepAliveCall struct {
	interval, count int
}

func newMockHandle() *mockHandle {
	return &mockHandle{
		uri:     "qemu:///system",
		caps:    capsXML,
		stopped: make(map[string]bool),
		vols:    make(map[string][]golibvirt.StorageVol),
		failXML: make(map[string]bool),
		listErr: make(map[string]error),
		domErr:  make(map[string]error),
		managed: make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (m *mockHandle) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
}

func (m *mockHandle) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockHandle) failing(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failXML[name]
}

func (m *mockHandle) Close() (int, error) {
	m.record("Close")
	return m.closeStatus, m.closeErr
}

func (m *mockHandle) URI() (string, error) {
	m.record("URI")
	return m.uri, m.uriErr
}

func (m *mockHandle) Capabilities() (string, error) {
	m.record("Capabilities")
	return m.caps, m.capsErr
}

func (m *mockHandle) LibVersion() (uint64, error) {
	m.record("LibVersion")
	return m.libVersion, m.libErr
}

func (m *mockHandle) Version() (uint64, error) {
	m.record("Version")
	return m.version, m.versionErr
}

func (m *mockHandle) ListAllDomains() ([]golibvirt.Domain, error) {
	m.record("ListAllDomains")
	return m.domains, m.listErr["domains"]
}

func (m *mockHandle) DomainXMLDesc(d golibvirt.Domain) (string, error) {
	m.record("DomainXMLDesc")
	if m.failing(d.Name) {
		return "", fmt.Errorf("domain %s vanished", d.Name)
	}
	return fmt.Sprintf(`<domain type="kvm"><name>%s</name><uuid>%x</uuid></domain>`, d.Name, d.UUID), nil
}

func (m *mockHandle) DomainLookupByName(name string) (golibvirt.Domain, error) {
	m.record("DomainLookupByName")
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.domErr["lookup"]; err != nil {
		return golibvirt.Domain{}, err
	}
	for _, d := range m.domains {
		if d.Name == name {
			return d, nil
		}
	}
	return golibvirt.Domain{}, fmt.Errorf("domain %s not found", name)
}

func (m *mockHandle) DomainHasManagedSaveImage(d golibvirt.Domain) (bool, error) {
	m.record("DomainHasManagedSaveImage")
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.managed[d.Name], m.domErr["managedsave"]
}

func (m *mockHandle) DomainState(d golibvirt.Domain) (int32, int32, error) {
	m.record("DomainState")
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.domErr["state"]; err != nil {
		return 0, 0, err
	}
	return int32(golibvirt.DomainRunning), 1, nil
}

func (m *mockHandle) ListAllStoragePools() ([]golibvirt.StoragePool, error) {
	m.record("ListAllStoragePools")
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]golibvirt.StoragePool(nil), m.pools...), m.listErr["pools"]
}

func (m *mockHandle) StoragePoolXMLDesc(p golibvirt.StoragePool) (string, error) {
	m.record("StoragePoolXMLDesc")
	if m.failing(p.Name) {
		return "", fmt.Errorf("pool %s vanished", p.Name)
	}
	return fmt.Sprintf(`<pool type="dir"><name>%s</name><target><path>/srv/%s</path></target></pool>`, p.Name, p.Name), nil
}

func (m *mockHandle) StoragePoolLookupByName(name string) (golibvirt.StoragePool, error) {
	m.record("StoragePoolLookupByName")
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pools {
		if p.Name == name {
			return p, nil
		}
	}
	return golibvirt.StoragePool{}, fmt.Errorf("pool %s not found", name)
}

func (m *mockHandle) StoragePoolState(p golibvirt.StoragePool) (golibvirt.StoragePoolState, error) {
	m.record("StoragePoolState")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped[p.Name] {
		return golibvirt.StoragePoolInactive, nil
	}
	return golibvirt.StoragePoolRunning, nil
}

func (m *mockHandle) ListAllVolumes(p golibvirt.StoragePool) ([]golibvirt.StorageVol, error) {
	m.record("ListAllVolumes")
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vols[p.Name], m.listErr["volumes"]
}

func (m *mockHandle) StorageVolXMLDesc(v golibvirt.StorageVol) (string, error) {
	m.record("StorageVolXMLDesc")
	if m.failing(v.Name) {
		return "", fmt.Errorf("volume %s vanished", v.Name)
	}
	return fmt.Sprintf(`<volume><name>%s</name><key>/srv/%s/%s</key></volume>`, v.Name, v.Pool, v.Name), nil
}

func (m *mockHandle) ListAllNodeDevices() ([]golibvirt.NodeDevice, error) {
	m.record("ListAllNodeDevices")
	return m.nodedevs, m.listErr["nodedevs"]
}

func (m *mockHandle) NodeDeviceXMLDesc(d golibvirt.NodeDevice) (string, error) {
	m.record("NodeDeviceXMLDesc")
	if m.failing(d.Name) {
		return "", fmt.Errorf("device %s vanished", d.Name)
	}
	return fmt.Sprintf(`<device><name>%s</name><parent>computer</parent><capability type="system"/></device>`, d.Name), nil
}

func (m *mockHandle) addPool(name string, running bool, vols ...string) golibvirt.StoragePool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := golibvirt.StoragePool{Name: name}
	m.pools = append(m.pools, p)
	m.stopped[name] = !running
	for _, v := range vols {
		m.vols[name] = append(m.vols[name], golibvirt.StorageVol{Pool: name, Name: v, Key: "/srv/" + name + "/" + v})
	}
	return p
}

// keepAliveHandle adds keep-alive support to mockHandle.
type keepAliveHandle struct {
	*mockHandle
	err error
}

func (k *keepAliveHandle) SetKeepAlive(interval, count int) error {
	k.record("SetKeepAlive")
	k.ka = &keepAliveCall{interval: interval, count: count}
	return k.err
}

// mockOpener hands out h and records what it was asked to open.
type mockOpener struct {
	h     Handle
	err   error
	uris  []string
	auths []libvirt.Auth
}

func (o *mockOpener) open(_ context.Context, uri string, auth libvirt.Auth) (Handle, error) {
	o.uris = append(o.uris, uri)
	o.auths = append(o.auths, auth)
	if o.err != nil {
		return nil, o.err
	}
	return o.h, nil
}

var errBoom = errors.New("boom")

const capsXML = `<capabilities>
  <host>
    <uuid>cd6a24b3-46f8-01aa-bb39-c39aa2123730</uuid>
    <cpu><arch>x86_64</arch></cpu>
  </host>
  <guest>
    <os_type>hvm</os_type>
    <arch name="x86_64">
      <domain type="kvm"/>
    </arch>
  </guest>
</capabilities>`
