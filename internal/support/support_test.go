package support

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	driver      string
	local       uint64
	daemon      uint64
	conn        uint64
	daemonCalls int
	connCalls   int
}

func (f *fakeTarget) Driver() string              { return f.driver }
func (f *fakeTarget) LocalLibraryVersion() uint64 { return f.local }
func (f *fakeTarget) DaemonVersion() uint64       { f.daemonCalls++; return f.daemon }
func (f *fakeTarget) ConnVersion() uint64         { f.connCalls++; return f.conn }

type fakeDomain struct {
	err error
}

func (d fakeDomain) HasManagedSaveImage() (bool, error) { return false, d.err }
func (d fakeDomain) State() (int32, int32, error)       { return 1, 0, d.err }

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "7.10.0", want: 7010000},
		{in: "1.2", want: 1002000},
		{in: "0.9.3", want: 9003},
		{in: "8006000", want: 8006000},
		{in: " 5.2.0 ", want: 5002000},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "1.1000.0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidVersion))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "8.6.0", FormatVersion(8006000))
	assert.Equal(t, "0.0.0", FormatVersion(0))
	assert.Equal(t, "10.1.12", FormatVersion(10001012))
}

func TestFeature_StringAndParse(t *testing.T) {
	for _, f := range Features() {
		got, err := ParseFeature(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := ParseFeature("no-such-feature")
	assert.Error(t, err)
	assert.Equal(t, "feature(99)", Feature(99).String())
}

func TestDefaultMatrix_CoversEveryFeature(t *testing.T) {
	m := DefaultMatrix()
	for _, f := range Features() {
		_, ok := m[f]
		assert.True(t, ok, "feature %s missing from default matrix", f)
	}
}

func TestMatrix_Evaluate(t *testing.T) {
	m := DefaultMatrix()

	tests := []struct {
		name    string
		feature Feature
		target  *fakeTarget
		data    any
		want    bool
	}{
		{
			name:    "plain library version satisfied",
			feature: ConnStream,
			target:  &fakeTarget{driver: "qemu", local: MustParseVersion("1.0.0")},
			want:    true,
		},
		{
			name:    "plain library version too old",
			feature: ConnStream,
			target:  &fakeTarget{driver: "qemu", local: MustParseVersion("0.9.2")},
			want:    false,
		},
		{
			name:    "unknown local version fails",
			feature: ConnStream,
			target:  &fakeTarget{driver: "qemu"},
			want:    false,
		},
		{
			name:    "hypervisor version satisfied",
			feature: ConnQEMUXHCI,
			target:  &fakeTarget{driver: "qemu", local: MustParseVersion("4.0.0"), conn: MustParseVersion("2.9.0")},
			want:    true,
		},
		{
			name:    "hypervisor version too old",
			feature: ConnQEMUXHCI,
			target:  &fakeTarget{driver: "qemu", local: MustParseVersion("4.0.0"), conn: MustParseVersion("2.8.0")},
			want:    false,
		},
		{
			name:    "driver absent from hypervisor map",
			feature: ConnQEMUXHCI,
			target:  &fakeTarget{driver: "xen", local: MustParseVersion("4.0.0"), conn: MustParseVersion("9.0.0")},
			want:    false,
		},
		{
			name:    "test driver zero requirement",
			feature: ConnVMGenID,
			target:  &fakeTarget{driver: "test", local: MustParseVersion("4.4.0")},
			want:    true,
		},
		{
			name:    "daemon version too old",
			feature: ConnFirmwareAuto,
			target:  &fakeTarget{driver: "qemu", local: MustParseVersion("6.0.0"), daemon: MustParseVersion("5.1.0")},
			want:    false,
		},
		{
			name:    "probe without data fails",
			feature: DomainManagedSave,
			target:  &fakeTarget{driver: "qemu", local: MustParseVersion("6.0.0")},
			want:    false,
		},
		{
			name:    "probe with working domain",
			feature: DomainManagedSave,
			target:  &fakeTarget{driver: "qemu", local: MustParseVersion("6.0.0")},
			data:    fakeDomain{},
			want:    true,
		},
		{
			name:    "probe with failing domain",
			feature: DomainState,
			target:  &fakeTarget{driver: "qemu", local: MustParseVersion("6.0.0")},
			data:    fakeDomain{err: errors.New("unsupported")},
			want:    false,
		},
		{
			name:    "unknown feature",
			feature: Feature(99),
			target:  &fakeTarget{driver: "qemu", local: MustParseVersion("9.0.0")},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Evaluate(tt.target, tt.feature, tt.data))
		})
	}
}

func TestMatrix_EvaluateWildcard(t *testing.T) {
	m := Matrix{
		ConnStream: {HVVersion: map[string]uint64{AllDrivers: 0, "qemu": MustParseVersion("2.0.0")}},
	}

	assert.True(t, m.Evaluate(&fakeTarget{driver: "lxc"}, ConnStream, nil))
	assert.False(t, m.Evaluate(&fakeTarget{driver: "qemu", conn: MustParseVersion("1.0.0")}, ConnStream, nil))
}

func TestMatrix_EvaluateSkipsUnneededVersionLookups(t *testing.T) {
	target := &fakeTarget{driver: "qemu", local: MustParseVersion("9.0.0")}

	assert.True(t, DefaultMatrix().Evaluate(target, ConnStream, nil))
	assert.Zero(t, target.daemonCalls)
	assert.Zero(t, target.connCalls)
}

func TestCheckVersion(t *testing.T) {
	target := &fakeTarget{daemon: MustParseVersion("7.0.0")}

	ok, err := CheckVersion(target, "6.10.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckVersion(target, "7.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CheckVersion(target, "not-a-version")
	assert.ErrorIs(t, err, ErrInvalidVersion)
}
