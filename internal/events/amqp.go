package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"zkv-router/internal/metrics"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes to a topic exchange with routing key
// <routingKey>.<event type>.
type AMQPPublisher struct {
	mu         sync.Mutex // amqp channels are not goroutine safe
	conn       *amqp.Connection
	ch         amqpChannel
	exchange   string
	routingKey string
}

// DialAMQP connects, retrying a few times while the broker starts.
func DialAMQP(url, exchange, routingKey string, log *logrus.Entry) (*AMQPPublisher, error) {
	if url == "" {
		return nil, errors.New("amqp url is required")
	}

	var conn *amqp.Connection
	var err error
	wait := time.Second
	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.WithError(err).WithField("attempt", i+1).Warn("RabbitMQ not ready, retrying")
		time.Sleep(wait)
		wait *= 2
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	metrics.EventSinkStatus.Set(1)
	p := newAMQPPublisher(ch, exchange, routingKey)
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch amqpChannel, exchange, routingKey string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange, routingKey: routingKey}
}

func (p *AMQPPublisher) Publish(ctx context.Context, e *Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, p.routingKey+"."+e.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    e.Timestamp,
		MessageId:    e.InvocationID,
		DeliveryMode: amqp.Persistent,
	})
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
