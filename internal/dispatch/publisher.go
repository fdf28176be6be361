package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/medtrack/go-adherence/internal/observability/metrics"
	"github.com/medtrack/go-adherence/pkg/circuitbreaker"
)

// Publisher publishes a notification payload to a topic. The Redpanda
// producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// BreakerPublisher wraps a Publisher with one circuit breaker per topic so a
// single misbehaving channel (say, the SMS gateway consumer backing up its
// topic) cannot drag the others down.
type BreakerPublisher struct {
	next     Publisher
	breakers *circuitbreaker.Manager
	logger   *zap.Logger
}

// NewBreakerPublisher creates a breaker-guarded publisher.
func NewBreakerPublisher(next Publisher, logger *zap.Logger, m *metrics.Metrics) *BreakerPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	var observer circuitbreaker.StateObserver
	if m != nil {
		observer = func(name string, state circuitbreaker.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(state.GaugeValue())
		}
	}
	return &BreakerPublisher{
		next:     next,
		breakers: circuitbreaker.NewManager(logger, observer),
		logger:   logger,
	}
}

// Publish routes the publish call through the topic's breaker.
func (p *BreakerPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	cb := p.breakers.GetOrCreate(topic, circuitbreaker.DefaultConfig(topic))
	_, err := cb.Execute(ctx, func() (interface{}, error) {
		return nil, p.next.Publish(ctx, topic, key, value)
	})
	return err
}

// Health reports the state of every topic breaker.
func (p *BreakerPublisher) Health() []circuitbreaker.HealthStatus {
	return p.breakers.GetHealthStatus()
}
