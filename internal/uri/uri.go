// Package uri decomposes libvirt connection URIs into the pieces the
// connection layer makes decisions on: hypervisor driver, transport,
// user, host, port and path.
//
// libvirt URIs have the general form:
//
//	driver[+transport]://[username@][hostname][:port]/[path][?extraparameters]
//
// Examples:
//
//	qemu:///system
//	qemu+ssh://root@kvm01.example.com/system
//	test:///default
//	xen:///
package uri

import (
	"fmt"
	"net/url"
	"strings"
)

// TransportTLS is the transport libvirt assumes for a remote URI that does
// not name one explicitly.
const TransportTLS = "tls"

// Info is a parsed libvirt URI.
type Info struct {
	Raw       string     // URI as supplied
	Scheme    string     // driver part of the scheme (qemu, xen, test, ...)
	Transport string     // transport part of the scheme (ssh, tcp, tls, unix), may be empty
	Username  string     // user from the authority section
	Hostname  string     // host from the authority section, brackets stripped for IPv6
	Port      string     // port from the authority section
	Path      string     // path component (/system, /session, /default, ...)
	Query     url.Values // extra parameters
}

// Parse parses a libvirt URI. An empty string yields an empty Info, which
// libvirt interprets as "pick the default hypervisor".
func Parse(raw string) (*Info, error) {
	info := &Info{Raw: raw, Query: url.Values{}}
	if raw == "" {
		return info, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid connection URI %q: %w", raw, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("invalid connection URI %q: missing driver scheme", raw)
	}

	scheme, transport, _ := strings.Cut(u.Scheme, "+")
	info.Scheme = scheme
	info.Transport = transport
	if u.User != nil {
		info.Username = u.User.Username()
	}
	info.Hostname = u.Hostname()
	info.Port = u.Port()
	info.Path = u.Path
	info.Query = u.Query()

	return info, nil
}

// MustParse is like Parse but panics on error. Intended for constants in tests.
func MustParse(raw string) *Info {
	info, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return info
}

// IsRemote reports whether the URI names a host.
func (i *Info) IsRemote() bool {
	return i.Hostname != ""
}

// EffectiveTransport returns the transport libvirt would use for this URI.
// A URI with a hostname but no explicit transport uses TLS.
func (i *Info) EffectiveTransport() string {
	if i.Hostname != "" && i.Transport == "" {
		return TransportTLS
	}
	return i.Transport
}

// DaemonURI returns the URI as the remote daemon sees it: transport,
// authority and client-side parameters removed.
//
// qemu+ssh://root@host/system?keyfile=x becomes qemu:///system.
func (i *Info) DaemonURI() string {
	if i.Scheme == "" {
		return ""
	}
	path := i.Path
	if path == "" {
		path = "/"
	}
	return i.Scheme + "://" + path
}

// HasDriverPrefix reports whether the driver scheme starts with any of the
// given prefixes.
func (i *Info) HasDriverPrefix(prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(i.Scheme, p) {
			return true
		}
	}
	return false
}
