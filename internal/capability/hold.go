package capability

import (
	"context"
	"time"

	"rcpc/client"
	rcperr "rcpc/internal/errors"
	"rcpc/internal/service"
	"rcpc/util"
)

// Hold subscribes to a set of services and keeps the session alive
// until the context is cancelled or the server goes away.
type Hold struct {
	Services  []service.Kind
	KeepAlive time.Duration // heartbeat period; 0 disables heartbeats
	Logger    *util.Logger
}

// Handle returns nil when ctx is cancelled and a Connection error
// wrapping ErrConnectionLost when the connection drops, so a caller
// can decide to reconnect.
func (h *Hold) Handle(ctx context.Context, c *client.Client) error {
	done := c.Done()

	for _, kind := range h.Services {
		if _, err := c.SubscribeService(kind); err != nil {
			if rcperr.IsKind(err, rcperr.KindService) {
				h.Logger.Warn("skipping %s: %v", kind, err)
				continue
			}
			return err
		}
		h.Logger.Info("subscribed to %s", kind)
	}

	var tick <-chan time.Time
	if h.KeepAlive > 0 {
		ticker := time.NewTicker(h.KeepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return rcperr.Connection("connection to server lost").WithCause(rcperr.ErrConnectionLost)
		case <-tick:
			if err := c.Heartbeat(); err != nil {
				h.Logger.Warn("heartbeat failed: %v", err)
			}
		}
	}
}
