package conn

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/virtconn/internal/endpoint"
	"github.com/jbweber/virtconn/internal/libvirt"
	"github.com/jbweber/virtconn/internal/support"
)

const testLocalVersion = 9000000

// TestMain silences connections built without WithLogger.
func TestMain(m *testing.M) {
	log.Logger = zerolog.Nop()
	os.Exit(m.Run())
}

// newTestConn returns an opened Connection for addr backed by h.
func newTestConn(t *testing.T, addr string, h Handle, opts ...Option) *Connection {
	t.Helper()

	opener := &mockOpener{h: h}
	opts = append([]Option{
		WithOpener(opener.open),
		WithLocalVersion(func() uint64 { return testLocalVersion }),
		WithLogger(zerolog.Nop()),
	}, opts...)

	c, err := New(addr, opts...)
	require.NoError(t, err)
	require.NoError(t, c.Open(context.Background(), nil, nil))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_MalformedSyntheticAddress(t *testing.T) {
	_, err := New(endpoint.Prefix + "test:///default,bogus")
	assert.ErrorIs(t, err, endpoint.ErrMalformedAddress)
}

func TestOpen_PassesCredentialTypesAndData(t *testing.T) {
	h := newMockHandle()
	opener := &mockOpener{h: h}
	c, err := New("qemu:///system", WithOpener(opener.open))
	require.NoError(t, err)

	called := false
	cb := func([]*libvirt.Credential, any) error { called = true; return nil }
	require.NoError(t, c.Open(context.Background(), cb, "cbdata"))
	defer c.Close()

	require.Len(t, opener.auths, 1)
	auth := opener.auths[0]
	assert.Equal(t, []libvirt.CredentialType{
		libvirt.CredAuthName,
		libvirt.CredEchoPrompt,
		libvirt.CredRealm,
		libvirt.CredPassphrase,
		libvirt.CredNoEchoPrompt,
		libvirt.CredExternal,
	}, auth.CredTypes)
	assert.Equal(t, "cbdata", auth.Data)
	require.NotNil(t, auth.Callback)
	require.NoError(t, auth.Callback(nil, nil))
	assert.True(t, called)
	assert.Equal(t, []string{"qemu:///system"}, opener.uris)
}

func TestOpen_Failure(t *testing.T) {
	opener := &mockOpener{err: errBoom}
	c, err := New("qemu:///system", WithOpener(opener.open))
	require.NoError(t, err)

	err = c.Open(context.Background(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, c.IsClosed())
	assert.Len(t, opener.uris, 1, "open failure must not be retried")
}

func TestOpen_AlreadyOpen(t *testing.T) {
	c := newTestConn(t, "qemu:///system", newMockHandle())

	err := c.Open(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrAlreadyOpen)
	assert.True(t, c.IsOpen())
}

func TestOpen_EmptyAddressAdoptsNegotiatedURI(t *testing.T) {
	h := newMockHandle()
	h.uri = "qemu+ssh://root@kvm01:2222/system"
	c := newTestConn(t, "", h)

	assert.Equal(t, "qemu+ssh://root@kvm01:2222/system", c.URI())
	assert.Equal(t, "qemu", c.URIDriver())
	assert.Equal(t, "kvm01", c.URIHostname())
	assert.Equal(t, "2222", c.URIPort())
	assert.Equal(t, "root", c.URIUsername())
	assert.Equal(t, "ssh", c.URITransport())
	assert.Equal(t, "/system", c.URIPath())
	assert.True(t, c.IsRemote())
	assert.True(t, c.IsQemuSystem())
	assert.Equal(t, 1, h.count("URI"))
}

func TestOpen_EmptyAddressURILookupFails(t *testing.T) {
	h := newMockHandle()
	h.uriErr = errBoom
	opener := &mockOpener{h: h}
	c, err := New("", WithOpener(opener.open))
	require.NoError(t, err)

	err = c.Open(context.Background(), nil, nil)
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, c.IsClosed())
	assert.Equal(t, 1, h.count("Close"), "handle must be released when the URI lookup fails")
}

func TestOpen_ExplicitAddressSkipsURILookup(t *testing.T) {
	h := newMockHandle()
	c := newTestConn(t, "qemu:///system", h)

	assert.Equal(t, "qemu:///system", c.URI())
	assert.Zero(t, h.count("URI"))
}

func TestClose(t *testing.T) {
	h := newMockHandle()
	c := newTestConn(t, "", h)
	ref := c.Ref()

	_, ok := Resolve(ref)
	require.True(t, ok)

	assert.Equal(t, 0, c.Close())
	assert.True(t, c.IsClosed())
	assert.False(t, c.IsOpen())
	assert.Empty(t, c.URI(), "negotiated address is cleared on close")
	assert.Empty(t, c.Ref())

	_, ok = Resolve(ref)
	assert.False(t, ok, "refs stop resolving after close")

	assert.Equal(t, 0, c.Close(), "closing twice is a no-op")
	assert.Equal(t, 1, h.count("Close"))
}

func TestClose_ReportsDriverStatus(t *testing.T) {
	h := newMockHandle()
	h.closeStatus = 2
	c := newTestConn(t, "qemu:///system", h)
	assert.Equal(t, 2, c.Close())

	h = newMockHandle()
	h.closeErr = errBoom
	c = newTestConn(t, "qemu:///system", h)
	assert.Equal(t, -1, c.Close())
	assert.True(t, c.IsClosed())
}

func TestClose_KeepsDisplayAddressAndFlags(t *testing.T) {
	addr := endpoint.Prefix + "test:///default,driver=qemu,remote,session"
	c := newTestConn(t, addr, newMockHandle())

	c.Close()

	assert.Equal(t, "qemu+tls://fakeremote.example.com/session", c.URI())
	assert.True(t, c.IsRemote())
	assert.True(t, c.IsSessionURI())
	assert.True(t, c.IsQemuSession())
}

func TestSyntheticPredictableEndpoint(t *testing.T) {
	h := newMockHandle()
	c := newTestConn(t, endpoint.Prefix+"test:///default,predictable,session", h)

	assert.True(t, c.FakeConnPredictable())
	assert.True(t, c.IsSynthetic())
	assert.False(t, c.IsRemote())
	assert.True(t, c.IsSessionURI())
	assert.Equal(t, c.LocalLibraryVersion(), c.DaemonVersion())
	assert.Zero(t, h.count("LibVersion"))
}

func TestSyntheticOverridesHandle(t *testing.T) {
	h := newMockHandle()
	h.caps = "<capabilities><host><cpu><arch>aarch64</arch></cpu></host></capabilities>"
	c := newTestConn(t, endpoint.Prefix+"test:///default,driver=qemu,libver=7.0.0,connver=6.2.0", h)

	uri, err := c.handle.URI()
	require.NoError(t, err)
	assert.Equal(t, "qemu:///system", uri)

	lib, err := c.handle.LibVersion()
	require.NoError(t, err)
	assert.Equal(t, support.MustParseVersion("7.0.0"), lib)

	ver, err := c.handle.Version()
	require.NoError(t, err)
	assert.Equal(t, support.MustParseVersion("6.2.0"), ver)

	caps, err := c.handle.Capabilities()
	require.NoError(t, err)
	assert.Equal(t, h.caps, caps, "no caps file means the real document")

	assert.Zero(t, h.count("URI"))
	assert.Zero(t, h.count("LibVersion"))
	assert.Zero(t, h.count("Version"))
}

func TestURIPredicates(t *testing.T) {
	tests := []struct {
		addr  string
		check func(t *testing.T, c *Connection)
	}{
		{
			addr: "qemu:///session",
			check: func(t *testing.T, c *Connection) {
				assert.True(t, c.IsQemu())
				assert.True(t, c.IsQemuSession())
				assert.False(t, c.IsQemuSystem())
				assert.False(t, c.IsRemote())
				assert.Empty(t, c.URITransport())
			},
		},
		{
			addr: "qemu://kvm01/system",
			check: func(t *testing.T, c *Connection) {
				assert.True(t, c.IsRemote())
				assert.Equal(t, "tls", c.URITransport())
			},
		},
		{
			addr: "xen:///",
			check: func(t *testing.T, c *Connection) {
				assert.True(t, c.IsXen())
				assert.False(t, c.IsQemu())
			},
		},
		{
			addr: "libxl:///system",
			check: func(t *testing.T, c *Connection) {
				assert.True(t, c.IsXen())
			},
		},
		{
			addr: "lxc:///",
			check: func(t *testing.T, c *Connection) {
				assert.True(t, c.IsLXC())
				assert.True(t, c.IsContainer())
			},
		},
		{
			addr: "openvz:///system",
			check: func(t *testing.T, c *Connection) {
				assert.True(t, c.IsOpenVZ())
				assert.True(t, c.IsContainer())
			},
		},
		{
			addr: "parallels:///system",
			check: func(t *testing.T, c *Connection) {
				assert.True(t, c.IsVZ())
				assert.False(t, c.IsContainer())
			},
		},
		{
			addr: "test:///default",
			check: func(t *testing.T, c *Connection) {
				assert.True(t, c.IsTest())
				assert.True(t, c.IsReallyTest())
			},
		},
		{
			addr: endpoint.Prefix + "test:///default,driver=qemu",
			check: func(t *testing.T, c *Connection) {
				assert.False(t, c.IsTest())
				assert.True(t, c.IsReallyTest())
				assert.True(t, c.IsQemuSystem())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			c, err := New(tt.addr)
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestSetKeepAlive(t *testing.T) {
	c, err := New("qemu:///system")
	require.NoError(t, err)
	assert.NoError(t, c.SetKeepAlive(5, 3), "closed connections ignore keep-alive")

	plain := newTestConn(t, "qemu:///system", newMockHandle())
	assert.NoError(t, plain.SetKeepAlive(5, 3), "handles without keep-alive ignore it")

	kh := &keepAliveHandle{mockHandle: newMockHandle()}
	withKA := newTestConn(t, "qemu:///system", kh)
	require.NoError(t, withKA.SetKeepAlive(5, 3))
	require.NotNil(t, kh.ka)
	assert.Equal(t, keepAliveCall{interval: 5, count: 3}, *kh.ka)

	kh.err = errBoom
	assert.ErrorIs(t, withKA.SetKeepAlive(5, 3), errBoom)

	withKA.Close()
	assert.NoError(t, withKA.SetKeepAlive(5, 3))
	assert.Equal(t, 2, kh.count("SetKeepAlive"), "no call reaches a closed handle")
}

func TestSetKeepAlive_ThroughSyntheticOverrides(t *testing.T) {
	kh := &keepAliveHandle{mockHandle: newMockHandle()}
	c := newTestConn(t, endpoint.Prefix+"test:///default,driver=qemu", kh)

	require.NoError(t, c.SetKeepAlive(10, 2))
	assert.Equal(t, 1, kh.count("SetKeepAlive"))
}

func TestResolve(t *testing.T) {
	c := newTestConn(t, "qemu:///system", newMockHandle())

	got, ok := Resolve(c.Ref())
	require.True(t, ok)
	assert.Same(t, c, got)

	_, ok = Resolve("not-a-ref")
	assert.False(t, ok)
}
