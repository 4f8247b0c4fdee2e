package bus

import (
	"context"
	"fmt"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/meadej/edgetech-gdl90/internal/config"
)

// mqttClient is the part of mqtt.Client the publisher uses.
type mqttClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes heartbeats to one topic and traffic reports to a
// per-participant subtopic.
type MQTTPublisher struct {
	client mqttClient
	cfg    config.MQTTConfig
	logger *slog.Logger
}

// NewMQTTPublisher connects to the configured broker. The paho client
// reconnects on its own after the initial connection succeeds.
func NewMQTTPublisher(cfg config.MQTTConfig, logger *slog.Logger) (*MQTTPublisher, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "edgetech-gdl90"
	}
	clientID = clientID + "-" + uuid.NewString()[:8]

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.GetConnectTimeoutDuration()).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("Connected to MQTT broker", slog.String("broker", cfg.Broker))
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", slog.String("broker", cfg.Broker), slog.String("error", err.Error()))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	return newMQTTPublisher(mqtt.NewClient(opts), cfg, logger)
}

func newMQTTPublisher(client mqttClient, cfg config.MQTTConfig, logger *slog.Logger) (*MQTTPublisher, error) {
	token := client.Connect()
	if !token.WaitTimeout(cfg.GetConnectTimeoutDuration()) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}

	return &MQTTPublisher{client: client, cfg: cfg, logger: logger}, nil
}

// Topic returns the MQTT topic msg is published on.
func (p *MQTTPublisher) Topic(msg Message) string {
	if msg.Topic == TopicHeartbeat {
		return p.cfg.HeartbeatTopic
	}
	if msg.Key == "" {
		return p.cfg.TrafficTopic
	}
	return p.cfg.TrafficTopic + "/" + msg.Key
}

func (p *MQTTPublisher) Publish(ctx context.Context, msg Message) error {
	topic := p.Topic(msg)
	token := p.client.Publish(topic, byte(p.cfg.QoS), p.cfg.Retain, msg.Body)

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish to %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish to %s: %w", topic, ctx.Err())
	}
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
