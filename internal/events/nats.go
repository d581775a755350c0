package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"zkv-router/internal/metrics"
)

type natsConn interface {
	Publish(subj string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSPublisher publishes to <subject>.<event type>.
type NATSPublisher struct {
	conn    natsConn
	subject string
	timeout time.Duration
}

// DialNATS connects to the broker. Reconnects are unbounded.
func DialNATS(url, subject string, timeout time.Duration, log *logrus.Entry) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("zkv-router"),
		nats.Timeout(timeout),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected")
			metrics.EventSinkStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
			metrics.EventSinkStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	metrics.EventSinkStatus.Set(1)
	return newNATSPublisher(conn, subject, timeout), nil
}

func newNATSPublisher(conn natsConn, subject string, timeout time.Duration) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject, timeout: timeout}
}

func (p *NATSPublisher) Publish(ctx context.Context, e *Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject+"."+e.Type, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return p.conn.FlushTimeout(timeout)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
