package support

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrInvalidVersion is returned when a version string cannot be parsed.
var ErrInvalidVersion = errors.New("invalid version")

// ParseVersion converts a version string into libvirt's integer encoding
// (major*1000000 + minor*1000 + micro).
//
// Dotted strings ("7.10.0", "1.2") are parsed as versions. A bare integer
// ("7010000") is taken to be already encoded.
func ParseVersion(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidVersion)
	}

	if !strings.Contains(s, ".") {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
		}
		return v, nil
	}

	v, err := semver.NewVersion(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidVersion, s, err)
	}
	if v.Minor() > 999 || v.Patch() > 999 {
		return 0, fmt.Errorf("%w: %q: component out of range", ErrInvalidVersion, s)
	}

	return v.Major()*1000000 + v.Minor()*1000 + v.Patch(), nil
}

// MustParseVersion is like ParseVersion but panics on error.
// Used for the literals in the support matrix.
func MustParseVersion(s string) uint64 {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatVersion renders an encoded version as "major.minor.micro".
// libvirt returns version as an integer like 8006000 for 8.6.0.
func FormatVersion(v uint64) string {
	major := v / 1000000
	minor := (v % 1000000) / 1000
	patch := v % 1000
	return fmt.Sprintf("%d.%d.%d", major, minor, patch)
}
