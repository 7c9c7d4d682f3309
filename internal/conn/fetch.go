package conn

import (
	"fmt"
	"slices"

	golibvirt "github.com/digitalocean/go-libvirt"
	"golang.org/x/sync/errgroup"

	"github.com/jbweber/virtconn/internal/metrics"
	"github.com/jbweber/virtconn/internal/objects"
)

// Category names one of the enumerable object kinds.
type Category int

const (
	CategoryDomains Category = iota
	CategoryPools
	CategoryVolumes
	CategoryNodeDevices
)

func (c Category) String() string {
	switch c {
	case CategoryDomains:
		return "domains"
	case CategoryPools:
		return "pools"
	case CategoryVolumes:
		return "volumes"
	case CategoryNodeDevices:
		return "nodedevs"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Overrides let a caller that already tracks live objects answer
// enumerations itself. A set callback fully replaces the cache for its
// category: its result is returned as is and nothing is stored.
type Overrides struct {
	Domains     func() ([]*objects.Guest, error)
	Pools       func() ([]*objects.StoragePool, error)
	Volumes     func() ([]*objects.StorageVolume, error)
	NodeDevices func() ([]*objects.NodeDevice, error)
	// NewPool replaces CacheNewPool.
	NewPool func(pool golibvirt.StoragePool) error
}

// SetOverrides installs o, replacing any previous overrides.
func (c *Connection) SetOverrides(o Overrides) {
	c.overrides = o
}

// listCache holds one category. It is either unloaded or a complete
// snapshot.
type listCache[T any] struct {
	items  []T
	loaded bool
}

func (l *listCache[T]) get() ([]T, bool) {
	if !l.loaded {
		return nil, false
	}
	return slices.Clone(l.items), true
}

func (l *listCache[T]) set(items []T) {
	l.items = items
	l.loaded = true
}

func (l *listCache[T]) add(items ...T) {
	l.items = append(l.items, items...)
}

func (l *listCache[T]) clear() {
	l.items = nil
	l.loaded = false
}

func (c *Connection) clearFetchCache() {
	c.domains.clear()
	c.pools.clear()
	c.volumes.clear()
	c.nodedevs.clear()
}

// fetch serves one category: override, then cache, then load. A failed
// load leaves the category unloaded.
func fetch[T any](c *Connection, cat Category, cache *listCache[T], override func() ([]T, error), load func() ([]T, error)) ([]T, error) {
	if override != nil {
		metrics.RecordFetch(cat.String(), metrics.SourceOverride)
		return override()
	}
	if items, ok := cache.get(); ok {
		metrics.RecordFetch(cat.String(), metrics.SourceCache)
		return items, nil
	}
	if c.handle == nil {
		return nil, ErrNotOpen
	}

	items, err := load()
	if err != nil {
		metrics.RecordFetchError(cat.String())
		return nil, fmt.Errorf("failed to fetch %s: %w", cat, err)
	}
	cache.set(items)

	metrics.RecordFetch(cat.String(), metrics.SourceRemote)
	c.logger.Debug().Stringer("category", cat).Int("count", len(items)).Msg("enumerated")
	return slices.Clone(items), nil
}

// describeAll runs describe for every handle with at most limit calls in
// flight. Results keep the order of handles. The first error wins.
func describeAll[H, T any](limit int, handles []H, describe func(H) (T, error)) ([]T, error) {
	out := make([]T, len(handles))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, h := range handles {
		g.Go(func() error {
			v, err := describe(h)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchDomains returns every domain on the connection.
func (c *Connection) FetchDomains() ([]*objects.Guest, error) {
	return fetch(c, CategoryDomains, &c.domains, c.overrides.Domains, c.loadDomains)
}

func (c *Connection) loadDomains() ([]*objects.Guest, error) {
	doms, err := c.handle.ListAllDomains()
	if err != nil {
		return nil, err
	}
	return describeAll(c.fetchConcurrency, doms, func(d golibvirt.Domain) (*objects.Guest, error) {
		xml, err := c.handle.DomainXMLDesc(d)
		if err != nil {
			return nil, err
		}
		return objects.NewGuest(c.ref, xml)
	})
}

// FetchPools returns every storage pool on the connection.
func (c *Connection) FetchPools() ([]*objects.StoragePool, error) {
	return fetch(c, CategoryPools, &c.pools, c.overrides.Pools, c.loadPools)
}

func (c *Connection) loadPools() ([]*objects.StoragePool, error) {
	pools, err := c.handle.ListAllStoragePools()
	if err != nil {
		return nil, err
	}
	return describeAll(c.fetchConcurrency, pools, c.describePool)
}

func (c *Connection) describePool(p golibvirt.StoragePool) (*objects.StoragePool, error) {
	xml, err := c.handle.StoragePoolXMLDesc(p)
	if err != nil {
		return nil, err
	}
	return objects.NewStoragePool(c.ref, xml)
}

// FetchVolumes returns the volumes of every running pool. Pools come from
// FetchPools, so a pools override or cached pool list is honored. Volumes
// whose description cannot be fetched are logged and left out.
func (c *Connection) FetchVolumes() ([]*objects.StorageVolume, error) {
	return fetch(c, CategoryVolumes, &c.volumes, c.overrides.Volumes, c.loadVolumes)
}

func (c *Connection) loadVolumes() ([]*objects.StorageVolume, error) {
	pools, err := c.FetchPools()
	if err != nil {
		return nil, err
	}

	var all []*objects.StorageVolume
	for _, p := range pools {
		vols, err := c.poolVolumes(p.Name())
		if err != nil {
			return nil, err
		}
		all = append(all, vols...)
	}
	return all, nil
}

// poolVolumes enumerates one pool's volumes. A pool that is not running
// yields none.
func (c *Connection) poolVolumes(poolName string) ([]*objects.StorageVolume, error) {
	pool, err := c.handle.StoragePoolLookupByName(poolName)
	if err != nil {
		return nil, err
	}
	state, err := c.handle.StoragePoolState(pool)
	if err != nil {
		return nil, err
	}
	if state != golibvirt.StoragePoolRunning {
		c.logger.Debug().Str("pool", poolName).Msg("skipping volumes of inactive pool")
		return nil, nil
	}

	vols, err := c.handle.ListAllVolumes(pool)
	if err != nil {
		return nil, err
	}

	described, err := describeAll(c.fetchConcurrency, vols, func(v golibvirt.StorageVol) (*objects.StorageVolume, error) {
		vol, err := c.describeVolume(poolName, v)
		if err != nil {
			c.logger.Debug().Err(err).Str("pool", poolName).Str("volume", v.Name).Msg("fetching volume XML failed, skipping")
			metrics.RecordSkipped(CategoryVolumes.String())
			return nil, nil
		}
		return vol, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(described, func(v *objects.StorageVolume) bool { return v == nil }), nil
}

func (c *Connection) describeVolume(poolName string, v golibvirt.StorageVol) (*objects.StorageVolume, error) {
	xml, err := c.handle.StorageVolXMLDesc(v)
	if err != nil {
		return nil, err
	}
	return objects.NewStorageVolume(c.ref, poolName, xml)
}

// FetchNodeDevices returns every host device on the connection.
func (c *Connection) FetchNodeDevices() ([]*objects.NodeDevice, error) {
	return fetch(c, CategoryNodeDevices, &c.nodedevs, c.overrides.NodeDevices, c.loadNodeDevices)
}

func (c *Connection) loadNodeDevices() ([]*objects.NodeDevice, error) {
	devs, err := c.handle.ListAllNodeDevices()
	if err != nil {
		return nil, err
	}
	return describeAll(c.fetchConcurrency, devs, func(d golibvirt.NodeDevice) (*objects.NodeDevice, error) {
		xml, err := c.handle.NodeDeviceXMLDesc(d)
		if err != nil {
			return nil, err
		}
		return objects.NewNodeDevice(c.ref, xml)
	})
}

// CacheNewPool adds a pool created outside this connection to the cached
// pool list, and its volumes to the cached volume list, without
// refetching either. Before the first FetchPools it does nothing; the next
// fetch will see the pool anyway.
func (c *Connection) CacheNewPool(pool golibvirt.StoragePool) error {
	if c.overrides.NewPool != nil {
		return c.overrides.NewPool(pool)
	}
	if !c.pools.loaded {
		return nil
	}
	if c.handle == nil {
		return ErrNotOpen
	}

	p, err := c.describePool(pool)
	if err != nil {
		return fmt.Errorf("failed to cache new pool %s: %w", pool.Name, err)
	}

	var vols []*objects.StorageVolume
	if c.volumes.loaded {
		if vols, err = c.poolVolumes(p.Name()); err != nil {
			return fmt.Errorf("failed to cache volumes of new pool %s: %w", pool.Name, err)
		}
	}

	c.pools.add(p)
	if c.volumes.loaded {
		c.volumes.add(vols...)
	}

	c.logger.Debug().Str("pool", p.Name()).Int("volumes", len(vols)).Msg("cached new pool")
	return nil
}
