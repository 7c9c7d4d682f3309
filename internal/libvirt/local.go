package libvirt

import (
	"sync"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"
	"github.com/rs/zerolog/log"
)

// The local library version is process state: it is looked up at most once
// per process, shared by every connection and never invalidated.
var (
	libVersionOnce sync.Once
	libVersion     uint64
)

// LibraryVersion returns the libvirt version installed on this host, as
// reported by the local system daemon. The first call performs the lookup;
// every later call returns the same value. Failure yields 0, which callers
// treat as unknown.
func LibraryVersion() uint64 {
	libVersionOnce.Do(func() {
		libVersion = probeLibraryVersion(DefaultSocket)
	})
	return libVersion
}

func probeLibraryVersion(socketPath string) uint64 {
	l := libvirt.NewWithDialer(dialers.NewLocal(
		dialers.WithSocket(socketPath),
		dialers.WithLocalTimeout(defaultTimeout),
	))
	if err := l.Connect(); err != nil {
		log.Debug().Err(err).Str("socket", socketPath).Msg("local libvirt version unavailable")
		return 0
	}
	defer func() {
		if err := l.Disconnect(); err != nil {
			log.Debug().Err(err).Msg("failed to disconnect after version lookup")
		}
	}()

	v, err := l.ConnectGetLibVersion()
	if err != nil {
		log.Debug().Err(err).Str("socket", socketPath).Msg("local libvirt version unavailable")
		return 0
	}
	return v
}
