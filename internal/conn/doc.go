// Package conn provides Connection, a caching facade over a libvirt
// connection.
//
// A Connection hides three costs of talking to a daemon:
//   - Enumerations (domains, storage pools, volumes, node devices) are
//     fetched once and served from cache until Close.
//   - Feature questions are answered from a support.Matrix against the
//     driver and the local, daemon and hypervisor versions, and remembered.
//   - Callers that already track live objects can answer enumerations
//     themselves through Overrides.
//
// Lifecycle:
//
//	c, err := conn.New("qemu:///system")
//	if err != nil {
//	    return err
//	}
//	if err := c.Open(ctx, promptForCredentials, nil); err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	guests, err := c.FetchDomains()
//
// Close drops the live handle, the capabilities snapshot and every object
// cache. The address and the flags derived from it survive, so a closed
// Connection still answers the URI predicates.
//
// Object References:
//
// Wrapped objects carry an objects.ConnRef instead of a pointer to their
// Connection. Resolve maps a ref back to the Connection while it is open.
//
// Consumer-Side Interfaces:
//
// Handle lists exactly the daemon operations the caches need. Tests supply
// a fake through WithOpener; production code uses *libvirt.Client.
package conn
