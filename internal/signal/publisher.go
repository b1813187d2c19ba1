// Package signal hands high-DIS items to the downstream coverage consumer
// over Kafka.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"horse.fit/newsignal/internal/logging"
	"horse.fit/newsignal/internal/scoring"
)

// Message is the JSON payload of one signal.
type Message struct {
	ItemID      int64     `json:"item_id"`
	Title       string    `json:"title"`
	SourceName  string    `json:"source_name"`
	SourceURL   string    `json:"source_url"`
	Tier        int       `json:"tier"`
	PublishedAt time.Time `json:"published_at"`
	DIS         int       `json:"dis"`
	SourceCount int       `json:"source_count"`
	ClusterSize int       `json:"cluster_size"`
}

func NewMessage(s scoring.Scored) Message {
	return Message{
		ItemID:      s.Item.ID,
		Title:       s.Item.Title,
		SourceName:  s.Item.SourceName,
		SourceURL:   s.Item.SourceURL,
		Tier:        s.Item.Tier,
		PublishedAt: s.Item.PublishedAt.UTC(),
		DIS:         s.DIS,
		SourceCount: s.SourceCount,
		ClusterSize: s.ClusterSize,
	}
}

type ProducerConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Publisher writes signals keyed by canonical URL so consumers can drop
// replays of the same story.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   zerolog.Logger
}

func NewProducerConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

func NewPublisher(cfg ProducerConfig, logger zerolog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka signal topic is required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "newsignal"
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewProducerConfig(clientID))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewPublisherWithProducer(producer, cfg.Topic, logger), nil
}

func NewPublisherWithProducer(producer sarama.SyncProducer, topic string, logger zerolog.Logger) *Publisher {
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

// Publish sends items in one batch and returns how many were accepted.
func (p *Publisher) Publish(ctx context.Context, items []scoring.Scored) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	msgs := make([]*sarama.ProducerMessage, 0, len(items))
	for _, item := range items {
		payload, err := json.Marshal(NewMessage(item))
		if err != nil {
			return 0, fmt.Errorf("encode signal item=%d: %w", item.Item.ID, err)
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(item.Item.SourceURL),
			Value: sarama.ByteEncoder(payload),
		})
	}

	err := p.producer.SendMessages(msgs)
	if err == nil {
		logger := logging.ForRun(ctx, p.logger)
		logger.Debug().Int("signals", len(msgs)).Str("topic", p.topic).Msg("signals published")
		return len(msgs), nil
	}

	var perMessage sarama.ProducerErrors
	if errors.As(err, &perMessage) {
		return len(msgs) - len(perMessage), fmt.Errorf("publish signals: %d of %d failed: %w", len(perMessage), len(msgs), err)
	}
	return 0, fmt.Errorf("publish signals: %w", err)
}

func (p *Publisher) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
