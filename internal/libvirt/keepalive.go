package libvirt

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// SetKeepAlive starts pinging the daemon every interval seconds. After
// count consecutive failed pings the connection is disconnected. An
// interval of 0 stops keep-alive. Calling it again replaces the previous
// settings.
func (c *Client) SetKeepAlive(interval, count int) error {
	if interval < 0 || count < 0 {
		return fmt.Errorf("invalid keep-alive settings interval=%d count=%d", interval, count)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.dead.Load() {
		return fmt.Errorf("failed to set keep-alive: connection closed")
	}
	if c.keepAlive != nil {
		c.keepAlive.stop()
		c.keepAlive = nil
	}
	if interval == 0 {
		return nil
	}

	l := c.l
	c.keepAlive = startKeepAlive(
		time.Duration(interval)*time.Second,
		count,
		func() error { return ping(l) },
		func() { c.giveUp(count, l.Disconnect) },
	)
	return nil
}

// giveUp marks the client dead and disconnects. It runs on the keep-alive
// goroutine and must not take c.mu, since Close holds it while waiting for
// that goroutine to exit.
func (c *Client) giveUp(failures int, disconnect func() error) {
	c.dead.Store(true)
	log.Warn().Str("uri", c.uri).Int("failures", failures).Msg("keep-alive failed, disconnecting")
	if err := disconnect(); err != nil {
		log.Debug().Err(err).Str("uri", c.uri).Msg("disconnect after keep-alive failure")
	}
}

// keepAlive runs ping on a ticker and calls dead once after count
// consecutive failures. count 0 behaves as 1.
type keepAlive struct {
	done chan struct{}
	quit chan struct{}
}

func startKeepAlive(interval time.Duration, count int, ping func() error, dead func()) *keepAlive {
	if count < 1 {
		count = 1
	}
	ka := &keepAlive{done: make(chan struct{}), quit: make(chan struct{})}

	go func() {
		defer close(ka.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		failures := 0
		for {
			select {
			case <-ka.quit:
				return
			case <-ticker.C:
				if err := ping(); err != nil {
					failures++
					log.Debug().Err(err).Int("failures", failures).Msg("keep-alive ping failed")
					if failures >= count {
						dead()
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	return ka
}

// stop ends the loop and waits for it to exit.
func (ka *keepAlive) stop() {
	select {
	case <-ka.done:
	default:
		close(ka.quit)
		<-ka.done
	}
}
