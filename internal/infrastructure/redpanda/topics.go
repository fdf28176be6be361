// Package redpanda provides topic management for the notification pipeline.
package redpanda

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/medtrack/go-adherence/internal/dispatch"
)

// TopicConfig holds configuration for a Kafka topic.
type TopicConfig struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
	Configs           map[string]*string
}

// DefaultTopicConfigs returns the notification channel topics. Reminder
// payloads are small and short-lived; dead letters are kept longer for
// operator review.
func DefaultTopicConfigs() []TopicConfig {
	ptr := func(s string) *string { return &s }

	channelConfig := map[string]*string{
		"retention.ms":     ptr("86400000"), // 1 day; a reminder older than that is useless
		"cleanup.policy":   ptr("delete"),
		"compression.type": ptr("lz4"),
	}

	var configs []TopicConfig
	for _, ch := range dispatch.AllChannels() {
		topic, err := ch.Topic()
		if err != nil {
			continue
		}
		configs = append(configs, TopicConfig{
			Name:              topic,
			Partitions:        6,
			ReplicationFactor: 1, // set to 3 in production
			Configs:           channelConfig,
		})
	}

	configs = append(configs, TopicConfig{
		Name:              dispatch.TopicDeadLetter,
		Partitions:        3,
		ReplicationFactor: 1,
		Configs: map[string]*string{
			"retention.ms":     ptr("604800000"), // 7 days
			"cleanup.policy":   ptr("delete"),
			"compression.type": ptr("lz4"),
		},
	})
	return configs
}

// Admin provides administrative operations for Redpanda.
type Admin struct {
	client *kadm.Client
	logger *zap.Logger
}

// NewAdmin creates a new admin client.
func NewAdmin(brokers []string, logger *zap.Logger) (*Admin, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	kgoClient, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &Admin{
		client: kadm.NewClient(kgoClient),
		logger: logger,
	}, nil
}

// CreateTopics creates the specified topics.
func (a *Admin) CreateTopics(ctx context.Context, configs []TopicConfig) error {
	for _, cfg := range configs {
		resp, err := a.client.CreateTopics(ctx, cfg.Partitions, cfg.ReplicationFactor, cfg.Configs, cfg.Name)
		if err != nil {
			return fmt.Errorf("failed to create topic %s: %w", cfg.Name, err)
		}

		for _, r := range resp {
			if r.Err != nil {
				if r.Err.Error() == "TOPIC_ALREADY_EXISTS" {
					a.logger.Info("topic already exists", zap.String("topic", r.Topic))
					continue
				}
				return fmt.Errorf("failed to create topic %s: %w", r.Topic, r.Err)
			}
			a.logger.Info("topic created",
				zap.String("topic", r.Topic),
				zap.Int32("partitions", cfg.Partitions))
		}
	}
	return nil
}

// EnsureTopics ensures all notification topics exist.
func (a *Admin) EnsureTopics(ctx context.Context) error {
	return a.CreateTopics(ctx, DefaultTopicConfigs())
}

// ListTopics lists all topics.
func (a *Admin) ListTopics(ctx context.Context) ([]string, error) {
	topics, err := a.client.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}

	var names []string
	for _, t := range topics {
		names = append(names, t.Topic)
	}
	return names, nil
}

// Close closes the admin client.
func (a *Admin) Close() {
	a.client.Close()
}

// HealthCheck verifies Redpanda connectivity.
func HealthCheck(ctx context.Context, brokers []string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
