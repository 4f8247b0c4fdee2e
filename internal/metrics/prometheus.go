package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the GDL90 bridge
type Metrics struct {
	// Ingest metrics
	DatagramsReceived prometheus.Counter
	ReadErrors        prometheus.Counter
	FramesDiscarded   *prometheus.CounterVec
	DecodeErrors      *prometheus.CounterVec
	MessagesDecoded   *prometheus.CounterVec
	MessagesIgnored   *prometheus.CounterVec
	DatagramDuration  prometheus.Histogram

	// Publish queue metrics
	QueueSize    prometheus.Gauge
	QueueDropped prometheus.Counter
	QueueFlushed prometheus.Counter

	// Publisher metrics
	PublishTotal    *prometheus.CounterVec
	PublishDuration *prometheus.HistogramVec
	PublishRetries  prometheus.Counter

	// Traffic tracking metrics
	ActiveTraffic  prometheus.Gauge
	TrafficExpired prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg. Passing
// prometheus.DefaultRegisterer exposes them on promhttp.Handler().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DatagramsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "gdl90_datagrams_received_total",
			Help: "Total number of UDP datagrams received",
		}),
		ReadErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "gdl90_read_errors_total",
			Help: "Total number of transient socket read errors",
		}),
		FramesDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gdl90_frames_discarded_total",
			Help: "Total number of frames discarded before decoding",
		}, []string{"reason"}),
		DecodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gdl90_decode_errors_total",
			Help: "Total number of valid frames whose message failed to decode",
		}, []string{"type"}),
		MessagesDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gdl90_messages_decoded_total",
			Help: "Total number of decoded messages",
		}, []string{"type"}),
		MessagesIgnored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gdl90_messages_ignored_total",
			Help: "Total number of valid frames carrying an unsupported message id",
		}, []string{"message_id"}),
		DatagramDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gdl90_datagram_processing_seconds",
			Help:    "Time spent decoding and enqueueing one datagram",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 12), // 10us to ~40ms
		}),

		QueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gdl90_queue_size",
			Help: "Current number of messages waiting to be published",
		}),
		QueueDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "gdl90_queue_dropped_total",
			Help: "Total number of queued messages dropped because the queue was full",
		}),
		QueueFlushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "gdl90_queue_flushed_total",
			Help: "Total number of queued messages abandoned at shutdown",
		}),

		PublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gdl90_publish_total",
			Help: "Total number of publish attempts by topic and outcome",
		}, []string{"topic", "outcome"}),
		PublishDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gdl90_publish_duration_seconds",
			Help:    "Duration of publish calls",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}, []string{"topic"}),
		PublishRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "gdl90_publish_retries_total",
			Help: "Total number of publisher retries",
		}),

		ActiveTraffic: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gdl90_active_traffic",
			Help: "Current number of traffic participants being tracked",
		}),
		TrafficExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "gdl90_traffic_expired_total",
			Help: "Total number of traffic participants removed after going quiet",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gdl90_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gdl90_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gdl90_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordDatagramReceived increments the datagrams received counter
func (m *Metrics) RecordDatagramReceived() {
	m.DatagramsReceived.Inc()
}

// RecordReadError increments the read errors counter
func (m *Metrics) RecordReadError() {
	m.ReadErrors.Inc()
}

// RecordFrameDiscarded counts a frame dropped for reason
func (m *Metrics) RecordFrameDiscarded(reason string) {
	m.FramesDiscarded.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordDecodeError(messageType string) {
	m.DecodeErrors.WithLabelValues(messageType).Inc()
}

func (m *Metrics) RecordMessageDecoded(messageType string) {
	m.MessagesDecoded.WithLabelValues(messageType).Inc()
}

// RecordMessageIgnored counts a valid frame with no registered decoder
func (m *Metrics) RecordMessageIgnored(messageID string) {
	m.MessagesIgnored.WithLabelValues(messageID).Inc()
}

func (m *Metrics) ObserveDatagram(durationSeconds float64) {
	m.DatagramDuration.Observe(durationSeconds)
}

// SetQueueSize sets the current queue size
func (m *Metrics) SetQueueSize(size int) {
	m.QueueSize.Set(float64(size))
}

func (m *Metrics) RecordQueueDropped() {
	m.QueueDropped.Inc()
}

func (m *Metrics) RecordQueueFlushed(n int) {
	m.QueueFlushed.Add(float64(n))
}

// RecordPublish records the outcome of one publish call
func (m *Metrics) RecordPublish(topic string, err error, durationSeconds float64) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.PublishTotal.WithLabelValues(topic, outcome).Inc()
	m.PublishDuration.WithLabelValues(topic).Observe(durationSeconds)
}

func (m *Metrics) RecordPublishRetry() {
	m.PublishRetries.Inc()
}

// SetActiveTraffic sets the number of tracked participants
func (m *Metrics) SetActiveTraffic(count int) {
	m.ActiveTraffic.Set(float64(count))
}

func (m *Metrics) RecordTrafficExpired(n int) {
	m.TrafficExpired.Add(float64(n))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
