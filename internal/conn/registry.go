package conn

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jbweber/virtconn/internal/objects"
)

// registry maps the refs held by wrapped objects to open connections. A
// connection is registered while open only, so a ref never extends a
// connection's life past Close.
var registry = struct {
	sync.RWMutex
	conns map[objects.ConnRef]*Connection
}{conns: make(map[objects.ConnRef]*Connection)}

func register(c *Connection) objects.ConnRef {
	ref := objects.ConnRef(uuid.NewString())

	registry.Lock()
	defer registry.Unlock()
	registry.conns[ref] = c
	return ref
}

func unregister(ref objects.ConnRef) {
	registry.Lock()
	defer registry.Unlock()
	delete(registry.conns, ref)
}

// Resolve returns the open connection an object reference points at. It
// reports false once that connection has been closed.
func Resolve(ref objects.ConnRef) (*Connection, bool) {
	registry.RLock()
	defer registry.RUnlock()
	c, ok := registry.conns[ref]
	return c, ok
}
