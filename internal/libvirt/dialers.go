package libvirt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/digitalocean/go-libvirt/socket"
	"github.com/digitalocean/go-libvirt/socket/dialers"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/jbweber/virtconn/internal/uri"
)

const (
	defaultTCPPort = "16509"
	defaultTLSPort = "16514"
	defaultSSHPort = "22"

	defaultPKICACert     = "/etc/pki/CA/cacert.pem"
	defaultPKIClientCert = "/etc/pki/libvirt/clientcert.pem"
	defaultPKIClientKey  = "/etc/pki/libvirt/private/clientkey.pem"
)

// socketDialer picks the go-libvirt dialer for info's transport.
func (d Dialer) socketDialer(info *uri.Info, auth Auth) (socket.Dialer, error) {
	switch t := info.EffectiveTransport(); t {
	case "", "unix":
		return dialers.NewLocal(
			dialers.WithSocket(d.localSocket(info)),
			dialers.WithLocalTimeout(d.timeout()),
		), nil
	case "tcp":
		return dialers.NewRemote(
			info.Hostname,
			dialers.UsePort(portOr(info.Port, defaultTCPPort)),
			dialers.WithRemoteTimeout(d.timeout()),
		), nil
	case "ssh":
		return &sshDialer{d: d, info: info, auth: auth}, nil
	case uri.TransportTLS:
		return &tlsDialer{d: d, info: info}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTransport, t)
	}
}

// localSocket returns the unix socket for a local URI: an explicit
// ?socket= parameter, then the Dialer override, then the per-user socket
// for session URIs, then the system socket.
func (d Dialer) localSocket(info *uri.Info) string {
	if s := info.Query.Get("socket"); s != "" {
		return s
	}
	if d.SocketPath != "" {
		return d.SocketPath
	}
	if info.Path == "/session" {
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
			return filepath.Join(dir, "libvirt", "libvirt-sock")
		}
	}
	return DefaultSocket
}

func portOr(port, def string) string {
	if port == "" {
		return def
	}
	return port
}

// sshDialer tunnels to the daemon's unix socket over an ssh connection.
type sshDialer struct {
	d    Dialer
	info *uri.Info
	auth Auth
}

func (s *sshDialer) Dial() (net.Conn, error) {
	user := s.info.Username
	if user == "" {
		var err error
		user, err = s.auth.ask(CredAuthName, "Username", os.Getenv("USER"))
		if err != nil {
			return nil, fmt.Errorf("failed to collect ssh username: %w", err)
		}
	}

	hostKeys, err := s.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            s.authMethods(user),
		HostKeyCallback: hostKeys,
		Timeout:         s.d.timeout(),
	}

	addr := net.JoinHostPort(s.info.Hostname, portOr(s.info.Port, defaultSSHPort))
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to ssh to %s: %w", addr, err)
	}

	remoteSocket := s.info.Query.Get("socket")
	if remoteSocket == "" {
		remoteSocket = DefaultSocket
	}
	conn, err := client.Dial("unix", remoteSocket)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach %s on %s: %w", remoteSocket, addr, err)
	}

	return &sshConn{Conn: conn, client: client}, nil
}

func (s *sshDialer) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if s.d.InsecureIgnoreHostKey || s.info.Query.Get("no_verify") == "1" {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path := s.d.KnownHostsPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate known_hosts: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}

	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts %s: %w", path, err)
	}
	return cb, nil
}

// authMethods offers private keys first (?keyfile= or the usual files
// under ~/.ssh), then a password collected through the credential
// callback.
func (s *sshDialer) authMethods(user string) []ssh.AuthMethod {
	var keyFiles []string
	if kf := s.info.Query.Get("keyfile"); kf != "" {
		keyFiles = []string{kf}
	} else if home, err := os.UserHomeDir(); err == nil {
		for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
			keyFiles = append(keyFiles, filepath.Join(home, ".ssh", name))
		}
	}

	var signers []ssh.Signer
	for _, kf := range keyFiles {
		data, err := os.ReadFile(kf)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			continue
		}
		signers = append(signers, signer)
	}

	var methods []ssh.AuthMethod
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	methods = append(methods, ssh.PasswordCallback(func() (string, error) {
		prompt := fmt.Sprintf("%s@%s's password", user, s.info.Hostname)
		return s.auth.ask(CredPassphrase, prompt, "")
	}))
	return methods
}

// sshConn closes the ssh client along with the tunneled connection.
type sshConn struct {
	net.Conn
	client *ssh.Client
}

func (c *sshConn) Close() error {
	err := c.Conn.Close()
	if cerr := c.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// tlsDialer connects to libvirtd's TLS port using the libvirt PKI layout.
type tlsDialer struct {
	d    Dialer
	info *uri.Info
}

func (t *tlsDialer) Dial() (net.Conn, error) {
	cfg, err := t.config()
	if err != nil {
		return nil, err
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: t.d.timeout()},
		Config:    cfg,
	}
	addr := net.JoinHostPort(t.info.Hostname, portOr(t.info.Port, defaultTLSPort))
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s over tls: %w", addr, err)
	}
	return conn, nil
}

// pkiFiles returns the CA, client certificate and client key paths. A
// pkipath (URI parameter or Dialer.PKIPath) holds all three files flat.
func (t *tlsDialer) pkiFiles() (caCert, cert, key string) {
	dir := t.info.Query.Get("pkipath")
	if dir == "" {
		dir = t.d.PKIPath
	}
	if dir == "" {
		return defaultPKICACert, defaultPKIClientCert, defaultPKIClientKey
	}
	return filepath.Join(dir, "cacert.pem"),
		filepath.Join(dir, "clientcert.pem"),
		filepath.Join(dir, "clientkey.pem")
}

func (t *tlsDialer) config() (*tls.Config, error) {
	caFile, certFile, keyFile := t.pkiFiles()

	caPEM, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	return &tls.Config{
		RootCAs:            pool,
		Certificates:       []tls.Certificate{cert},
		ServerName:         t.info.Hostname,
		InsecureSkipVerify: t.info.Query.Get("no_verify") == "1",
		MinVersion:         tls.VersionTLS12,
	}, nil
}
