package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	natsMaxReconnects = -1
	natsReconnectWait = 2 * time.Second
)

// subjectPublisher is the part of *nats.Conn the forwarder needs
type subjectPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSForwarder republishes every in-process event on NATS under
// <prefix>.<type>, e.g. duel.events.match_ended
type NATSForwarder struct {
	conn   subjectPublisher
	prefix string
	logger *zap.Logger
}

// ConnectNATS dials the NATS server with reconnect logging
func ConnectNATS(url string, logger *zap.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("duel-server"),
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Error("NATS error", zap.Error(err))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return nc, nil
}

// NewNATSForwarder creates a forwarder publishing on conn
func NewNATSForwarder(conn subjectPublisher, prefix string, logger *zap.Logger) *NATSForwarder {
	return &NATSForwarder{
		conn:   conn,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logger,
	}
}

// Subject returns the subject an event type is published on
func (f *NATSForwarder) Subject(eventType EventType) string {
	return f.prefix + "." + strings.ToLower(string(eventType))
}

// Handle is a Handler; register it with Publisher.SubscribeAll
func (f *NATSForwarder) Handle(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		f.logger.Error("failed to marshal event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	subject := f.Subject(event.Type)
	if err := f.conn.Publish(subject, data); err != nil {
		f.logger.Warn("failed to forward event",
			zap.String("subject", subject),
			zap.Error(err),
		)
		return
	}

	f.logger.Debug("event forwarded", zap.String("subject", subject))
}
