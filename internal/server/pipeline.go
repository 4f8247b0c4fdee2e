package server

import (
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/meadej/edgetech-gdl90/internal/bus"
	"github.com/meadej/edgetech-gdl90/internal/gdl90"
	"github.com/meadej/edgetech-gdl90/internal/metrics"
	"github.com/meadej/edgetech-gdl90/internal/traffic"
)

// DatagramHandler consumes raw GDL90 datagrams. receivedAt is the time the
// datagram arrived and becomes the record receive time.
type DatagramHandler interface {
	HandleDatagram(datagram []byte, receivedAt time.Time)
}

// Pipeline decodes datagrams into records and enqueues them for publishing.
// It is driven by one goroutine at a time.
type Pipeline struct {
	queue   *bus.Queue
	tracker *traffic.Manager
	metrics *metrics.Metrics
	logger  *slog.Logger
	source  string

	mu            sync.RWMutex
	lastHeartbeat gdl90.Optional[uint32]
	stats         PipelineStats
}

// PipelineStats represents decode statistics
type PipelineStats struct {
	Datagrams       uint64 `json:"datagrams"`
	FramesDiscarded uint64 `json:"frames_discarded"`
	DecodeErrors    uint64 `json:"decode_errors"`
	MessagesIgnored uint64 `json:"messages_ignored"`
	Heartbeats      uint64 `json:"heartbeats"`
	TrafficReports  uint64 `json:"traffic_reports"`
	EncodeErrors    uint64 `json:"encode_errors"`
	QueueEvictions  uint64 `json:"queue_evictions"`
	QueueRejected   uint64 `json:"queue_rejected"`
}

// NewPipeline creates a pipeline. tracker may be nil.
func NewPipeline(source string, queue *bus.Queue, tracker *traffic.Manager, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		queue:   queue,
		tracker: tracker,
		metrics: m,
		logger:  logger,
		source:  source,
	}
}

// HandleDatagram decodes every frame in datagram. Malformed frames are
// counted and dropped; nothing here returns an error to the caller.
func (p *Pipeline) HandleDatagram(datagram []byte, receivedAt time.Time) {
	start := time.Now()

	p.mu.Lock()
	p.stats.Datagrams++
	p.mu.Unlock()

	segments := gdl90.SplitFrames(datagram)
	if len(segments) == 0 {
		// flags only; let DecodeFrame classify it
		segments = [][]byte{datagram}
	}
	for _, seg := range segments {
		p.handleFrame(seg, receivedAt)
	}

	p.metrics.ObserveDatagram(time.Since(start).Seconds())
}

func (p *Pipeline) handleFrame(data []byte, receivedAt time.Time) {
	frame, err := gdl90.DecodeFrame(data)
	if err != nil {
		reason := "unknown"
		var fe *gdl90.FrameError
		if errors.As(err, &fe) {
			reason = string(fe.Reason)
		}
		p.count(func(s *PipelineStats) { s.FramesDiscarded++ })
		p.metrics.RecordFrameDiscarded(reason)
		p.logger.Debug("Discarding frame",
			slog.String("reason", reason),
			slog.Int("size", len(data)),
		)
		return
	}

	name := gdl90.MessageName(frame.MessageID)
	msg, err := gdl90.Dispatch(frame)
	if errors.Is(err, gdl90.ErrUnsupportedMessage) {
		p.count(func(s *PipelineStats) { s.MessagesIgnored++ })
		p.metrics.RecordMessageIgnored(strconv.Itoa(int(frame.MessageID)))
		return
	}
	if err != nil {
		p.count(func(s *PipelineStats) { s.DecodeErrors++ })
		p.metrics.RecordDecodeError(name)
		p.logger.Debug("Discarding undecodable message",
			slog.String("type", name),
			slog.String("error", err.Error()),
		)
		return
	}
	p.metrics.RecordMessageDecoded(name)

	var out bus.Message
	switch rec := msg.(type) {
	case gdl90.Heartbeat:
		hb := rec.WithReceivedAt(receivedAt)
		p.mu.Lock()
		p.stats.Heartbeats++
		p.lastHeartbeat = gdl90.Known(hb.TimestampSeconds)
		p.mu.Unlock()

		out, err = bus.HeartbeatMessage(p.source, hb)
	case gdl90.TrafficReport:
		r := rec.WithReceivedAt(receivedAt)
		p.mu.Lock()
		p.stats.TrafficReports++
		last := p.lastHeartbeat
		p.mu.Unlock()

		if p.tracker != nil {
			p.tracker.Observe(r)
		}
		out, err = bus.TrafficMessage(p.source, r, last)
	default:
		return
	}
	if err != nil {
		p.count(func(s *PipelineStats) { s.EncodeErrors++ })
		p.logger.Error("Failed to encode record", slog.String("type", name), slog.String("error", err.Error()))
		return
	}

	p.enqueue(out)
}

func (p *Pipeline) enqueue(msg bus.Message) {
	evicted, err := p.queue.Push(msg)
	if err != nil {
		p.count(func(s *PipelineStats) { s.QueueRejected++ })
		p.logger.Debug("Publish queue closed, dropping record", slog.String("topic", string(msg.Topic)))
		return
	}
	if evicted {
		p.count(func(s *PipelineStats) { s.QueueEvictions++ })
		p.metrics.RecordQueueDropped()
		p.logger.Debug("Publish queue full, dropped oldest record")
	}
	p.metrics.SetQueueSize(p.queue.Len())
}

func (p *Pipeline) count(f func(s *PipelineStats)) {
	p.mu.Lock()
	f(&p.stats)
	p.mu.Unlock()
}

// LastHeartbeat returns the timestamp of the most recent heartbeat.
func (p *Pipeline) LastHeartbeat() gdl90.Optional[uint32] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastHeartbeat
}

// GetStats returns current decode statistics
func (p *Pipeline) GetStats() PipelineStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}
