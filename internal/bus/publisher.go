package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meadej/edgetech-gdl90/internal/config"
	"github.com/meadej/edgetech-gdl90/internal/metrics"
)

// TopicKind names the logical stream a message belongs to.
type TopicKind string

const (
	TopicHeartbeat     TopicKind = "heartbeat"
	TopicTrafficReport TopicKind = "traffic_report"
)

// Message is one serialized record ready for publication. Key is the
// participant address for traffic and empty for heartbeats.
type Message struct {
	Topic      TopicKind
	Key        string
	Body       []byte
	ReceivedAt time.Time
}

// Publisher delivers messages to the bus. Implementations own connection
// management, authentication and retry.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// NewPublisher builds the adapter selected by cfg.Type.
func NewPublisher(cfg config.PublisherConfig, logger *slog.Logger, m *metrics.Metrics) (Publisher, error) {
	switch cfg.Type {
	case config.PublisherMQTT:
		return NewMQTTPublisher(cfg.MQTT, logger)
	case config.PublisherWebhook:
		return NewWebhookPublisher(cfg.Webhook, logger, m)
	case config.PublisherJSONL:
		return OpenJSONLPublisher(cfg.JSONL.Path)
	default:
		return nil, fmt.Errorf("unknown publisher type %q", cfg.Type)
	}
}
