// Package libvirt is the transport adapter between the connection layer and
// a libvirt daemon.
//
// This package wraps github.com/digitalocean/go-libvirt to provide:
//   - URI-driven connection setup over unix, tcp, ssh and tls transports
//   - The list and describe calls the object cache needs
//   - Client-side keep-alive
//   - The process-wide local library version
//
// Connection Management:
//
// A Dialer picks the transport from the URI and hands the daemon the URI
// with transport and host stripped:
//
//	c, err := libvirt.Dialer{}.Open(ctx, "qemu+ssh://root@kvm01/system", libvirt.Auth{
//	    CredTypes: libvirt.DefaultCredentialTypes,
//	    Callback:  promptForCredentials,
//	})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
// Credentials:
//
// go-libvirt does not speak SASL, so the credential callback is consulted
// by the transports that need input: ssh asks for the username (AuthName)
// when the URI carries none and for a password (Passphrase) when key
// authentication fails.
//
// Consumer-Side Interfaces:
//
// This package does not define interfaces. internal/conn declares the
// Handle interface listing the operations it consumes; *Client satisfies it
// implicitly.
package libvirt
