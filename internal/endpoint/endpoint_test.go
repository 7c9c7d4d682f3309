package endpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_PlainAddress(t *testing.T) {
	for _, addr := range []string{"", "qemu:///system", "qemu+ssh://root@kvm01/system"} {
		res, err := Resolve(addr)
		require.NoError(t, err)

		assert.False(t, res.Synthetic)
		assert.Equal(t, addr, res.OpenURI)
		assert.Equal(t, addr, res.DisplayURI)
		assert.Equal(t, Flags{}, res.Flags)
		assert.Equal(t, Overrides{}, res.Overrides)
	}
}

func TestResolve_Synthetic(t *testing.T) {
	tests := []struct {
		name        string
		addr        string
		wantDisplay string
		wantFlags   func(t *testing.T, f Flags)
	}{
		{
			name:        "open uri only",
			addr:        Prefix + "test:///default",
			wantDisplay: "test:///default",
		},
		{
			name:        "qemu system",
			addr:        Prefix + "test:///default,driver=qemu,predictable",
			wantDisplay: "qemu:///system",
			wantFlags: func(t *testing.T, f Flags) {
				assert.True(t, f.Predictable)
				assert.False(t, f.Remote)
			},
		},
		{
			name:        "qemu session",
			addr:        Prefix + "test:///default,driver=qemu,session",
			wantDisplay: "qemu:///session",
			wantFlags: func(t *testing.T, f Flags) {
				assert.True(t, f.Session)
			},
		},
		{
			name:        "remote qemu",
			addr:        Prefix + "test:///default,driver=qemu,remote",
			wantDisplay: "qemu+tls://fakeremote.example.com/system",
			wantFlags: func(t *testing.T, f Flags) {
				assert.True(t, f.Remote)
			},
		},
		{
			name:        "driver without session split",
			addr:        Prefix + "test:///default,driver=lxc",
			wantDisplay: "lxc:///",
		},
		{
			name:        "fakeuri wins over driver",
			addr:        Prefix + "test:///default,driver=qemu,fakeuri=xen+ssh://root@xenhost/",
			wantDisplay: "xen+ssh://root@xenhost/",
		},
		{
			name:        "forced versions",
			addr:        Prefix + "test:///default,libver=8.0.0,connver=7002000",
			wantDisplay: "test:///default",
			wantFlags: func(t *testing.T, f Flags) {
				require.NotNil(t, f.LibVersion)
				require.NotNil(t, f.ConnVersion)
				assert.Equal(t, uint64(8000000), *f.LibVersion)
				assert.Equal(t, uint64(7002000), *f.ConnVersion)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(tt.addr)
			require.NoError(t, err)

			assert.True(t, res.Synthetic)
			assert.Equal(t, "test:///default", res.OpenURI)
			assert.Equal(t, tt.wantDisplay, res.DisplayURI)
			assert.Equal(t, tt.wantDisplay, res.Overrides.URI)
			assert.Equal(t, res.Flags.LibVersion, res.Overrides.LibVersion)
			assert.Equal(t, res.Flags.ConnVersion, res.Overrides.ConnVersion)
			if tt.wantFlags != nil {
				tt.wantFlags(t, res.Flags)
			}
		})
	}
}

func TestResolve_CapsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caps.xml")
	require.NoError(t, os.WriteFile(path, []byte("<capabilities/>"), 0o600))

	res, err := Resolve(Prefix + "test:///default,caps=" + path)
	require.NoError(t, err)
	assert.Equal(t, "<capabilities/>", res.Overrides.CapsXML)
}

func TestResolve_Malformed(t *testing.T) {
	tests := []struct {
		name string
		addr string
	}{
		{name: "empty open uri", addr: Prefix},
		{name: "blank open uri", addr: Prefix + " ,predictable"},
		{name: "open uri without scheme", addr: Prefix + "/just/a/path"},
		{name: "unknown option", addr: Prefix + "test:///default,bogus"},
		{name: "duplicate option", addr: Prefix + "test:///default,remote,remote"},
		{name: "flag with value", addr: Prefix + "test:///default,remote=yes"},
		{name: "driver without value", addr: Prefix + "test:///default,driver="},
		{name: "bad libver", addr: Prefix + "test:///default,libver=banana"},
		{name: "bad connver", addr: Prefix + "test:///default,connver=1.2000.0"},
		{name: "missing caps file", addr: Prefix + "test:///default,caps=/nonexistent/caps.xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.addr)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedAddress)
		})
	}
}

func TestIsSynthetic(t *testing.T) {
	assert.True(t, IsSynthetic(Prefix+"test:///default"))
	assert.False(t, IsSynthetic("test:///default"))
	assert.False(t, IsSynthetic(""))
}
