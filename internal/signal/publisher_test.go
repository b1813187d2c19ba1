package signal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"

	"horse.fit/newsignal/internal/news"
	"horse.fit/newsignal/internal/scoring"
)

func scored(id int64, url string, dis int) scoring.Scored {
	return scoring.Scored{
		Item: news.StoredItem{
			ID:          id,
			Title:       "Ceasefire announced",
			SourceName:  "Wire",
			SourceURL:   url,
			Tier:        1,
			PublishedAt: time.Date(2026, 10, 19, 11, 0, 0, 0, time.UTC),
		},
		DIS:         dis,
		SourceCount: 1,
		ClusterSize: 1,
	}
}

func TestPublishKeysByCanonicalURL(t *testing.T) {
	t.Parallel()

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var msg Message
		if err := json.Unmarshal(val, &msg); err != nil {
			return err
		}
		if msg.ItemID != 1 || msg.DIS != 68 {
			return errors.New("unexpected payload")
		}
		return nil
	})
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "https://wire.example/b" || msg.Topic != "news.signals" {
			return errors.New("unexpected key or topic")
		}
		return nil
	})

	pub := NewPublisherWithProducer(producer, "news.signals", zerolog.Nop())
	t.Cleanup(func() { _ = pub.Close() })

	n, err := pub.Publish(context.Background(), []scoring.Scored{
		scored(1, "https://wire.example/a", 68),
		scored(2, "https://wire.example/b", 75),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 published, got %d", n)
	}
}

func TestPublishSurfacesProducerFailure(t *testing.T) {
	t.Parallel()

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewPublisherWithProducer(producer, "news.signals", zerolog.Nop())
	t.Cleanup(func() { _ = pub.Close() })

	n, err := pub.Publish(context.Background(), []scoring.Scored{
		scored(1, "https://wire.example/a", 68),
		scored(2, "https://wire.example/b", 75),
	})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected out of brokers error, got %v", err)
	}
	if n != 0 {
		t.Fatalf("expected nothing counted as accepted, got %d", n)
	}
}

func TestNewPublisherRequiresBrokers(t *testing.T) {
	t.Parallel()

	if _, err := NewPublisher(ProducerConfig{Topic: "news.signals"}, zerolog.Nop()); err == nil {
		t.Fatalf("expected missing brokers error")
	}
}
