package session

import (
	"time"

	"github.com/relaydesk/fabric/internal/wire"
)

// keepaliveLoop sends Ping on the configured interval and closes the
// connection if no Pong has been observed within the timeout, forcing the
// reconnect loop to take over.
func (e *Engine) keepaliveLoop(done chan struct{}) {
	ticker := time.NewTicker(e.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-e.stop:
			return
		case <-ticker.C:
			e.enqueueControl(wire.Envelope{Kind: wire.KindPing})

			e.lastPongMu.Lock()
			last := e.lastPong
			e.lastPongMu.Unlock()

			if time.Since(last) > e.cfg.KeepaliveTimeout {
				log.Warn("keepalive timeout, forcing reconnect")
				e.connMu.Lock()
				if e.conn != nil {
					e.conn.Close()
				}
				e.connMu.Unlock()
				return
			}
		}
	}
}
