package conn

import (
	"github.com/jbweber/virtconn/internal/metrics"
	"github.com/jbweber/virtconn/internal/support"
)

// CheckSupport reports whether every feature is supported, stopping at the
// first that is not. data is the object the question is about; nil means
// the connection itself. A *objects.Guest is queried through the
// connection its ref resolves to.
//
// Each feature's answer is computed once and kept for the life of the
// Connection. A later call with different data gets the first answer.
// Use CheckVersion for an uncached comparison.
func (c *Connection) CheckSupport(data any, features ...support.Feature) bool {
	for _, f := range features {
		if !c.checkFeature(f, data) {
			return false
		}
	}
	return true
}

// Supports is CheckSupport with no data.
func (c *Connection) Supports(features ...support.Feature) bool {
	return c.CheckSupport(nil, features...)
}

func (c *Connection) checkFeature(f support.Feature, data any) bool {
	if ok, cached := c.supportCache[f]; cached {
		metrics.RecordSupportCheck(f.String(), true)
		return ok
	}

	ok := c.matrix.Evaluate(c, f, c.supportSubject(data))
	c.supportCache[f] = ok

	metrics.RecordSupportCheck(f.String(), false)
	c.logger.Debug().Str("feature", f.String()).Bool("supported", ok).Msg("feature evaluated")
	return ok
}

// CheckVersion reports whether the daemon is at least version ("X.Y.Z" or
// an encoded integer). Nothing is cached.
func (c *Connection) CheckVersion(version string) (bool, error) {
	return support.CheckVersion(c, version)
}

// SupportsRemoteURLInstall reports whether media can be streamed to the
// endpoint. Synthetic endpoints never can.
func (c *Connection) SupportsRemoteURLInstall() bool {
	if c.res.Synthetic {
		return false
	}
	return c.Supports(support.ConnStream)
}
