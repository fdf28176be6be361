package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/medtrack/go-adherence/internal/domain/adherence"
	"github.com/medtrack/go-adherence/internal/observability/metrics"
	"github.com/medtrack/go-adherence/pkg/clock"
)

// Queue is where the dispatcher enqueues notifications. The postgres
// notification outbox implements it; the relay drains it to Redpanda.
type Queue interface {
	Enqueue(ctx context.Context, recordID string, channel Channel, topic, key string, payload []byte) error
}

// OutboxDispatcher implements adherence.Dispatcher by writing one outbox
// entry per enabled channel. Enqueueing is a local database write, so a
// scheduling sweep never blocks on broker I/O.
type OutboxDispatcher struct {
	queue    Queue
	channels []Channel
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewOutboxDispatcher creates a dispatcher for the given channels.
func NewOutboxDispatcher(queue Queue, channels []Channel, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) (*OutboxDispatcher, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("at least one delivery channel is required")
	}
	for _, ch := range channels {
		if _, err := ch.Topic(); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &OutboxDispatcher{
		queue:    queue,
		channels: channels,
		clock:    clk,
		logger:   logger,
		metrics:  m,
	}, nil
}

// Channels names the channels this dispatcher attempts.
func (d *OutboxDispatcher) Channels() []string {
	out := make([]string, len(d.channels))
	for i, ch := range d.channels {
		out[i] = string(ch)
	}
	return out
}

// Notify enqueues one notification per channel. Attempted is true when at
// least one entry was written; partial failures are reported but do not
// roll back the other channels.
func (d *OutboxDispatcher) Notify(ctx context.Context, rec *adherence.Record, med adherence.Summary) (bool, error) {
	now := d.clock.Now()
	attempted := false
	var firstErr error

	for _, ch := range d.channels {
		topic, err := ch.Topic()
		if err != nil {
			// Unreachable for channels validated at construction.
			return attempted, err
		}

		payload, err := NewNotification(rec, med, ch, now).Marshal()
		if err != nil {
			return attempted, fmt.Errorf("marshal notification: %w", err)
		}

		// Key by medication so one medication's notifications stay ordered
		// per partition.
		if err := d.queue.Enqueue(ctx, rec.ID, ch, topic, rec.MedicationID, payload); err != nil {
			d.logger.Warn("notification enqueue failed",
				zap.String("record_id", rec.ID),
				zap.String("channel", string(ch)),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		attempted = true
		if d.metrics != nil {
			d.metrics.NotificationsEnqueued.WithLabelValues(string(ch)).Inc()
		}
	}
	return attempted, firstErr
}
