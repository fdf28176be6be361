// Package circuitbreaker provides resilience for notification publishing.
// Wraps sony/gobreaker with tracing and defaults tuned for the Redpanda
// delivery path: a broker outage must not stall scheduling sweeps.
package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// State represents the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// GaugeValue maps a state to the value exported on the breaker state gauge.
func (s State) GaugeValue() float64 {
	switch s {
	case StateOpen:
		return 1
	case StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// Config holds circuit breaker configuration.
type Config struct {
	Name string
	// MaxRequests is max requests allowed in half-open state.
	MaxRequests uint32
	// Interval is the cyclic period for clearing counts in closed state.
	Interval time.Duration
	// Timeout is how long to wait before transitioning from open to half-open.
	Timeout time.Duration
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit before MinRequests is reached.
	FailureThreshold uint32
	// FailureRatio opens the circuit once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultConfig returns defaults suitable for notification channel publishing.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		FailureRatio:     0.6,
		MinRequests:      10,
	}
}

// StateObserver is notified on state changes. The dispatcher uses it to
// export the breaker state gauge.
type StateObserver func(name string, state State)

// CircuitBreaker wraps gobreaker with logging and tracing.
type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	logger *zap.Logger
	tracer trace.Tracer

	observer StateObserver

	stateMu      sync.RWMutex
	currentState State
}

// New creates a new circuit breaker. The observer may be nil.
func New(cfg Config, logger *zap.Logger, observer StateObserver) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := &CircuitBreaker{
		name:         cfg.Name,
		logger:       logger,
		tracer:       otel.Tracer("circuit-breaker"),
		observer:     observer,
		currentState: StateClosed,
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cb.onStateChange(from, to)
		},
	}
	cb.cb = gobreaker.NewCircuitBreaker(settings)
	return cb
}

// Execute runs a function through the circuit breaker.
func (c *CircuitBreaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	_, span := c.tracer.Start(ctx, "circuit_breaker_execute",
		trace.WithAttributes(
			attribute.String("breaker_name", c.name),
			attribute.String("state", string(c.GetState())),
		))
	defer span.End()

	result, err := c.cb.Execute(fn)
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			span.SetAttributes(attribute.Bool("circuit_open", true))
		}
		span.RecordError(err)
		return nil, err
	}
	return result, nil
}

// GetState returns the current circuit breaker state.
func (c *CircuitBreaker) GetState() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.currentState
}

// IsOpen reports whether the circuit is open.
func (c *CircuitBreaker) IsOpen() bool { return c.GetState() == StateOpen }

// Counts returns the current counts from the circuit breaker.
func (c *CircuitBreaker) Counts() gobreaker.Counts { return c.cb.Counts() }

func (c *CircuitBreaker) onStateChange(from, to gobreaker.State) {
	toState := mapState(to)

	c.stateMu.Lock()
	c.currentState = toState
	c.stateMu.Unlock()

	c.logger.Warn("circuit breaker state changed",
		zap.String("breaker", c.name),
		zap.String("from", string(mapState(from))),
		zap.String("to", string(toState)))

	if c.observer != nil {
		c.observer(c.name, toState)
	}
}

func mapState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Manager hands out one breaker per name, one per notification channel.
type Manager struct {
	breakers map[string]*CircuitBreaker
	mu       sync.RWMutex
	logger   *zap.Logger
	observer StateObserver
}

// NewManager creates a circuit breaker manager.
func NewManager(logger *zap.Logger, observer StateObserver) *Manager {
	return &Manager{
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger,
		observer: observer,
	}
}

// GetOrCreate returns an existing breaker or creates a new one.
func (m *Manager) GetOrCreate(name string, cfg Config) *CircuitBreaker {
	m.mu.RLock()
	if cb, ok := m.breakers[name]; ok {
		m.mu.RUnlock()
		return cb
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok := m.breakers[name]; ok {
		return cb
	}

	cfg.Name = name
	cb := New(cfg, m.logger, m.observer)
	m.breakers[name] = cb
	return cb
}

// HealthStatus describes one breaker for health endpoints.
type HealthStatus struct {
	Name     string `json:"name"`
	State    State  `json:"state"`
	Requests uint32 `json:"requests"`
	Failures uint32 `json:"failures"`
	Healthy  bool   `json:"healthy"`
}

// GetHealthStatus returns health status for all circuit breakers.
func (m *Manager) GetHealthStatus() []HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var statuses []HealthStatus
	for name, cb := range m.breakers {
		counts := cb.Counts()
		statuses = append(statuses, HealthStatus{
			Name:     name,
			State:    cb.GetState(),
			Requests: counts.Requests,
			Failures: counts.TotalFailures,
			Healthy:  cb.GetState() == StateClosed,
		})
	}
	return statuses
}
