// Package objects wraps libvirt XML descriptions (domains, storage pools,
// storage volumes, node devices and host capabilities) in small read-only
// types built on libvirt.org/go/libvirtxml.
//
// Every wrapper keeps a ConnRef to the connection it came from. The ref is
// an identifier, not a pointer: holding a wrapper never keeps a connection
// alive, and once the connection closes the ref stops resolving.
package objects
