package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Publisher adapter types.
const (
	PublisherMQTT    = "mqtt"
	PublisherWebhook = "webhook"
	PublisherJSONL   = "jsonl"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Queue     QueueConfig     `yaml:"queue"`
	Publisher PublisherConfig `yaml:"publisher"`
	Traffic   TrafficConfig   `yaml:"traffic"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains UDP listener configuration
type ServerConfig struct {
	UDPPort     int    `yaml:"udp_port"`
	BindAddress string `yaml:"bind_address"`
	BufferSize  int    `yaml:"buffer_size"`
}

// QueueConfig controls the buffer between ingest and the publisher
type QueueConfig struct {
	Capacity       int `yaml:"capacity"`
	PublishTimeout int `yaml:"publish_timeout"` // seconds
	DrainTimeout   int `yaml:"drain_timeout"`   // seconds
}

// PublisherConfig selects and configures the bus adapter
type PublisherConfig struct {
	Type     string        `yaml:"type"`
	SensorID string        `yaml:"sensor_id"`
	MQTT     MQTTConfig    `yaml:"mqtt"`
	Webhook  WebhookConfig `yaml:"webhook"`
	JSONL    JSONLConfig   `yaml:"jsonl"`
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker         string `yaml:"broker"`
	ClientID       string `yaml:"client_id"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	HeartbeatTopic string `yaml:"heartbeat_topic"`
	TrafficTopic   string `yaml:"traffic_topic"`
	QoS            int    `yaml:"qos"`
	Retain         bool   `yaml:"retain"`
	ConnectTimeout int    `yaml:"connect_timeout"` // seconds
}

// WebhookConfig contains HTTP sink settings
type WebhookConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Timeout    int    `yaml:"timeout"` // seconds
	MaxRetries int    `yaml:"max_retries"`
}

// JSONLConfig contains JSON-lines sink settings
type JSONLConfig struct {
	Path string `yaml:"path"` // "stdout" or a file path
}

// TrafficConfig controls the live traffic table
type TrafficConfig struct {
	Timeout         int `yaml:"timeout"`          // seconds
	CleanupInterval int `yaml:"cleanup_interval"` // seconds
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a configuration that listens on the standard GDL90 port,
// writes JSON lines to stdout and logs to stderr.
func Default() Config {
	return Config{
		Server: ServerConfig{
			UDPPort:     4000,
			BindAddress: "0.0.0.0",
			BufferSize:  65536,
		},
		Queue: QueueConfig{
			Capacity:       1024,
			PublishTimeout: 5,
			DrainTimeout:   5,
		},
		Publisher: PublisherConfig{
			Type:     PublisherJSONL,
			SensorID: "gdl90",
			MQTT: MQTTConfig{
				Broker:         "tcp://localhost:1883",
				ClientID:       "edgetech-gdl90",
				HeartbeatTopic: "gdl90/heartbeat",
				TrafficTopic:   "gdl90/traffic",
				QoS:            0,
				ConnectTimeout: 10,
			},
			Webhook: WebhookConfig{
				Timeout:    10,
				MaxRetries: 3,
			},
			JSONL: JSONLConfig{
				Path: "stdout",
			},
		},
		Traffic: TrafficConfig{
			Timeout:         60,
			CleanupInterval: 10,
		},
		HTTP: HTTPConfig{
			Port:    8080,
			Address: "0.0.0.0",
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// Load reads the configuration file over Default and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config: %w", err)
	}

	if err := c.Publisher.Validate(); err != nil {
		return fmt.Errorf("publisher config: %w", err)
	}

	if err := c.Traffic.Validate(); err != nil {
		return fmt.Errorf("traffic config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.UDPPort < 1 || s.UDPPort > 65535 {
		return fmt.Errorf("udp_port must be between 1 and 65535, got %d", s.UDPPort)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.BufferSize < 1024 {
		return fmt.Errorf("buffer_size must be at least 1024 bytes, got %d", s.BufferSize)
	}

	return nil
}

// Validate validates queue configuration
func (q *QueueConfig) Validate() error {
	if q.Capacity < 1 {
		return fmt.Errorf("capacity must be at least 1, got %d", q.Capacity)
	}

	if q.PublishTimeout < 1 {
		return fmt.Errorf("publish_timeout must be at least 1 second, got %d", q.PublishTimeout)
	}

	if q.DrainTimeout < 0 {
		return fmt.Errorf("drain_timeout cannot be negative, got %d", q.DrainTimeout)
	}

	return nil
}

// Validate validates the selected publisher and its section
func (p *PublisherConfig) Validate() error {
	if p.SensorID == "" {
		return fmt.Errorf("sensor_id cannot be empty")
	}

	switch p.Type {
	case PublisherMQTT:
		if err := p.MQTT.Validate(); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	case PublisherWebhook:
		if err := p.Webhook.Validate(); err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
	case PublisherJSONL:
		if p.JSONL.Path == "" {
			return fmt.Errorf("jsonl: path cannot be empty")
		}
	default:
		return fmt.Errorf("type must be one of [mqtt, webhook, jsonl], got '%s'", p.Type)
	}

	return nil
}

// Validate validates MQTT configuration
func (m *MQTTConfig) Validate() error {
	if m.Broker == "" {
		return fmt.Errorf("broker cannot be empty")
	}

	if m.HeartbeatTopic == "" || m.TrafficTopic == "" {
		return fmt.Errorf("heartbeat_topic and traffic_topic cannot be empty")
	}

	if m.QoS < 0 || m.QoS > 2 {
		return fmt.Errorf("qos must be between 0 and 2, got %d", m.QoS)
	}

	if m.ConnectTimeout < 1 {
		return fmt.Errorf("connect_timeout must be at least 1 second, got %d", m.ConnectTimeout)
	}

	return nil
}

// Validate validates webhook configuration
func (w *WebhookConfig) Validate() error {
	if w.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	u, err := url.Parse(w.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("endpoint must be an http or https URL, got '%s'", w.Endpoint)
	}

	if w.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", w.Timeout)
	}

	if w.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", w.MaxRetries)
	}

	return nil
}

// Validate validates traffic tracking configuration
func (t *TrafficConfig) Validate() error {
	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.CleanupInterval < 1 {
		return fmt.Errorf("cleanup_interval must be at least 1 second, got %d", t.CleanupInterval)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration. Output may be stdout, stderr or a
// file path.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetPublishTimeoutDuration returns the per-message publish timeout
func (q *QueueConfig) GetPublishTimeoutDuration() time.Duration {
	return time.Duration(q.PublishTimeout) * time.Second
}

// GetDrainTimeoutDuration returns how long shutdown waits for the queue to empty
func (q *QueueConfig) GetDrainTimeoutDuration() time.Duration {
	return time.Duration(q.DrainTimeout) * time.Second
}

// GetConnectTimeoutDuration returns the MQTT connect timeout as a time.Duration
func (m *MQTTConfig) GetConnectTimeoutDuration() time.Duration {
	return time.Duration(m.ConnectTimeout) * time.Second
}

// GetTimeoutDuration returns the webhook request timeout as a time.Duration
func (w *WebhookConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(w.Timeout) * time.Second
}

// GetTimeoutDuration returns the participant expiry as a time.Duration
func (t *TrafficConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetCleanupIntervalDuration returns the expiry sweep interval as a time.Duration
func (t *TrafficConfig) GetCleanupIntervalDuration() time.Duration {
	return time.Duration(t.CleanupInterval) * time.Second
}
