// Package support holds the feature-support matrix: which libvirt features
// are available for a given driver and set of library, daemon and
// hypervisor versions.
//
// Features are a plain enumerated type shared by the matrix and by the
// per-connection result cache in internal/conn. This package evaluates a
// rule; it does not memoize. Memoization is the caller's job.
//
// Versions use libvirt's integer encoding, major*1000000 + minor*1000 +
// micro, and 0 means "unknown". A rule that requires any version is
// therefore never satisfied by an unknown version.
package support
