package events

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"zkv-router/internal/config"
)

// Event types
const (
	ProofConverted    = "proof.converted"
	ConversionFailed  = "proof.convert_failed"
	ProofSubmitted    = "proof.submitted"
	ProofSubmitFailed = "proof.submit_failed"
	ProofDuplicate    = "proof.duplicate"
	RemarkSubmitted   = "remark.submitted"
	RemarkFailed      = "remark.failed"
)

// Event is a pipeline milestone published for downstream consumers.
type Event struct {
	Type         string    `json:"type"`
	InvocationID string    `json:"invocation_id"`
	RequestID    string    `json:"request_id,omitempty"`
	ProofPath    string    `json:"proof_path,omitempty"`
	Fingerprint  string    `json:"fingerprint,omitempty"`
	Endpoint     string    `json:"endpoint,omitempty"`
	TxHash       string    `json:"tx_hash,omitempty"`
	Stage        string    `json:"stage,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher delivers events. Implementations are safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
	Close() error
}

// Open builds the publisher named by cfg.Driver.
func Open(cfg config.EventsConfig, log *logrus.Entry) (Publisher, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	switch cfg.Driver {
	case "", "none":
		return Nop{}, nil
	case "nats":
		return DialNATS(cfg.URL, cfg.Subject, timeout, log)
	case "amqp":
		return DialAMQP(cfg.URL, cfg.Exchange, cfg.RoutingKey, log)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, *Event) error { return nil }
func (Nop) Close() error                          { return nil }
