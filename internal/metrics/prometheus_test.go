package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordPublishOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordPublish("heartbeat", nil, 0.001)
	m.RecordPublish("heartbeat", nil, 0.002)
	m.RecordPublish("traffic_report", errors.New("broker unavailable"), 0.5)

	if got := testutil.ToFloat64(m.PublishTotal.WithLabelValues("heartbeat", "success")); got != 2 {
		t.Errorf("Expected 2 successful heartbeat publishes, got %v", got)
	}
	if got := testutil.ToFloat64(m.PublishTotal.WithLabelValues("traffic_report", "error")); got != 1 {
		t.Errorf("Expected 1 failed traffic publish, got %v", got)
	}
}

func TestQueueAndTrafficGauges(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetQueueSize(12)
	m.RecordQueueDropped()
	m.RecordQueueFlushed(3)
	m.SetActiveTraffic(4)
	m.RecordTrafficExpired(2)

	tests := []struct {
		name      string
		collector prometheus.Collector
		want      float64
	}{
		{"queue size", m.QueueSize, 12},
		{"queue dropped", m.QueueDropped, 1},
		{"queue flushed", m.QueueFlushed, 3},
		{"active traffic", m.ActiveTraffic, 4},
		{"traffic expired", m.TrafficExpired, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.collector); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMetricNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RecordFrameDiscarded("bad_checksum")
	m.RecordMessageIgnored("11")

	expected := `
# HELP gdl90_frames_discarded_total Total number of frames discarded before decoding
# TYPE gdl90_frames_discarded_total counter
gdl90_frames_discarded_total{reason="bad_checksum"} 1
# HELP gdl90_messages_ignored_total Total number of valid frames carrying an unsupported message id
# TYPE gdl90_messages_ignored_total counter
gdl90_messages_ignored_total{message_id="11"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"gdl90_frames_discarded_total", "gdl90_messages_ignored_total"); err != nil {
		t.Error(err)
	}
}

func TestRegistersOncePerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	defer func() {
		if recover() == nil {
			t.Error("Expected duplicate registration to panic")
		}
	}()
	NewMetrics(reg)
}
