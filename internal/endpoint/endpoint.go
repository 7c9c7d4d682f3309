// Package endpoint resolves the address a connection is constructed with.
//
// Most addresses are plain libvirt URIs and pass through untouched. An
// address starting with Prefix is synthetic: it names a real URI to open
// (usually test:///...) plus options that make the resulting connection
// look like something else, for example a remote qemu session daemon of a
// given version. Synthetic addresses exist for tests and demos and never
// cause remote I/O during resolution.
//
// Synthetic address format:
//
//	__virtconn_test__<open-uri>[,option...]
//
// Options:
//
//	predictable      stable output for golden-file style tests
//	remote           pretend the endpoint is remote
//	session          pretend the endpoint is a session daemon
//	driver=<name>    pretend to be this hypervisor driver
//	fakeuri=<uri>    report this URI verbatim
//	caps=<file>      serve this capabilities document
//	libver=<ver>     force the daemon library version
//	connver=<ver>    force the hypervisor version
package endpoint

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jbweber/virtconn/internal/support"
	"github.com/jbweber/virtconn/internal/uri"
)

// Prefix marks a synthetic address.
const Prefix = "__virtconn_test__"

// fakeRemoteHost is the hostname put into the display URI of a synthetic
// remote endpoint.
const fakeRemoteHost = "fakeremote.example.com"

// ErrMalformedAddress is returned when a synthetic address cannot be parsed.
var ErrMalformedAddress = errors.New("malformed synthetic address")

// Flags are the behavioral switches derived from the address. All fields
// are zero for a plain address.
type Flags struct {
	Predictable bool
	Remote      bool
	Session     bool
	LibVersion  *uint64 // forced daemon library version
	ConnVersion *uint64 // forced hypervisor version
}

// Overrides are installed on the opened handle of a synthetic endpoint.
type Overrides struct {
	URI         string  // reported by the handle instead of the real URI
	CapsXML     string  // served instead of the real capabilities, empty for none
	LibVersion  *uint64 // served instead of the real library version
	ConnVersion *uint64 // served instead of the real hypervisor version
}

// Resolution is the outcome of resolving an address.
type Resolution struct {
	Input      string // address as supplied
	OpenURI    string // address handed to the transport
	DisplayURI string // address reported to users
	Synthetic  bool
	Flags      Flags
	Overrides  Overrides
}

// IsSynthetic reports whether addr carries the synthetic prefix.
func IsSynthetic(addr string) bool {
	return strings.HasPrefix(addr, Prefix)
}

// Resolve turns addr into a Resolution.
func Resolve(addr string) (*Resolution, error) {
	if !IsSynthetic(addr) {
		return &Resolution{Input: addr, OpenURI: addr, DisplayURI: addr}, nil
	}

	fields := strings.Split(strings.TrimPrefix(addr, Prefix), ",")
	openURI := strings.TrimSpace(fields[0])
	if openURI == "" {
		return nil, fmt.Errorf("%w: %q: missing URI to open", ErrMalformedAddress, addr)
	}
	if _, err := uri.Parse(openURI); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrMalformedAddress, addr, err)
	}

	res := &Resolution{Input: addr, OpenURI: openURI, Synthetic: true}
	var driver, fakeURI, capsFile string
	seen := make(map[string]bool)

	for _, field := range fields[1:] {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, value, hasValue := strings.Cut(field, "=")
		if seen[key] {
			return nil, fmt.Errorf("%w: %q: duplicate option %q", ErrMalformedAddress, addr, key)
		}
		seen[key] = true

		switch key {
		case "predictable", "remote", "session":
			if hasValue {
				return nil, fmt.Errorf("%w: %q: option %q takes no value", ErrMalformedAddress, addr, key)
			}
			switch key {
			case "predictable":
				res.Flags.Predictable = true
			case "remote":
				res.Flags.Remote = true
			case "session":
				res.Flags.Session = true
			}
		case "driver", "fakeuri", "caps", "libver", "connver":
			if value == "" {
				return nil, fmt.Errorf("%w: %q: option %q requires a value", ErrMalformedAddress, addr, key)
			}
			switch key {
			case "driver":
				driver = value
			case "fakeuri":
				if _, err := uri.Parse(value); err != nil {
					return nil, fmt.Errorf("%w: %q: %w", ErrMalformedAddress, addr, err)
				}
				fakeURI = value
			case "caps":
				capsFile = value
			case "libver":
				v, err := support.ParseVersion(value)
				if err != nil {
					return nil, fmt.Errorf("%w: %q: libver: %w", ErrMalformedAddress, addr, err)
				}
				res.Flags.LibVersion = &v
			case "connver":
				v, err := support.ParseVersion(value)
				if err != nil {
					return nil, fmt.Errorf("%w: %q: connver: %w", ErrMalformedAddress, addr, err)
				}
				res.Flags.ConnVersion = &v
			}
		default:
			return nil, fmt.Errorf("%w: %q: unknown option %q", ErrMalformedAddress, addr, key)
		}
	}

	if capsFile != "" {
		data, err := os.ReadFile(capsFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: failed to read capabilities: %w", ErrMalformedAddress, addr, err)
		}
		res.Overrides.CapsXML = string(data)
	}

	res.DisplayURI = displayURI(openURI, driver, fakeURI, res.Flags)
	res.Overrides.URI = res.DisplayURI
	res.Overrides.LibVersion = res.Flags.LibVersion
	res.Overrides.ConnVersion = res.Flags.ConnVersion

	return res, nil
}

func displayURI(openURI, driver, fakeURI string, flags Flags) string {
	if fakeURI != "" {
		return fakeURI
	}
	if driver == "" {
		return openURI
	}

	scheme := driver
	host := ""
	if flags.Remote {
		scheme += "+" + uri.TransportTLS
		host = fakeRemoteHost
	}

	path := "/system"
	if flags.Session {
		path = "/session"
	}
	switch driver {
	case "xen", "lxc", "vz", "openvz":
		path = "/"
	}

	return scheme + "://" + host + path
}
