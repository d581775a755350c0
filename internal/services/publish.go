package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"zkv-router/internal/events"
	"zkv-router/internal/metrics"
)

// publish delivers e best-effort. A sink outage never fails the pipeline.
func publish(ctx context.Context, p events.Publisher, log *logrus.Entry, e *events.Event) {
	if err := p.Publish(ctx, e); err != nil {
		metrics.EventPublishFailures.WithLabelValues(e.Type).Inc()
		log.WithError(err).WithField("event", e.Type).Warn("failed to publish event")
	}
}
