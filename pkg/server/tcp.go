package server

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
)

// Accept retry backoff bounds
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// ServeTCP accepts connections on ln and attaches each one to the hub until
// ctx is cancelled. Failed accepts are retried with a capped backoff, so only
// a closed listener ends the loop. The listener is closed on return.
func (h *Hub) ServeTCP(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()

	h.logger.Info("accepting TCP connections", zap.String("address", ln.Addr().String()))

	var delay time.Duration
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				h.logger.Info("TCP listener closed")
				return nil
			}

			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			h.logger.Warn("accept error, retrying", zap.Error(err), zap.Duration("delay", delay))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				h.logger.Info("TCP listener closed")
				return nil
			}
			continue
		}

		delay = 0
		h.Attach(NewTCPTransport(nc))
	}
}
