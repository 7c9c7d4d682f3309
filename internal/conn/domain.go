package conn

import (
	"fmt"

	golibvirt "github.com/digitalocean/go-libvirt"

	"github.com/jbweber/virtconn/internal/objects"
	"github.com/jbweber/virtconn/internal/support"
)

// guestQuery answers runtime questions about a wrapped guest through the
// connection its ref points at.
type guestQuery struct {
	g *objects.Guest
}

var (
	_ support.ManagedSaveChecker = guestQuery{}
	_ support.StateQuerier       = guestQuery{}
)

func (q guestQuery) lookup() (Handle, golibvirt.Domain, error) {
	c, ok := Resolve(q.g.Conn())
	if !ok || c.handle == nil {
		return nil, golibvirt.Domain{}, ErrNotOpen
	}
	d, err := c.handle.DomainLookupByName(q.g.Name())
	if err != nil {
		return nil, golibvirt.Domain{}, fmt.Errorf("failed to find guest %s: %w", q.g.Name(), err)
	}
	return c.handle, d, nil
}

func (q guestQuery) HasManagedSaveImage() (bool, error) {
	h, d, err := q.lookup()
	if err != nil {
		return false, err
	}
	return h.DomainHasManagedSaveImage(d)
}

func (q guestQuery) State() (int32, int32, error) {
	h, d, err := q.lookup()
	if err != nil {
		return 0, 0, err
	}
	return h.DomainState(d)
}

// supportSubject maps data passed to CheckSupport onto what the matrix
// rules type-assert against.
func (c *Connection) supportSubject(data any) any {
	switch v := data.(type) {
	case nil:
		return c
	case *objects.Guest:
		if v == nil {
			return c
		}
		return guestQuery{g: v}
	default:
		return data
	}
}
