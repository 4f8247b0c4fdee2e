package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meadej/edgetech-gdl90/internal/bus"
	"github.com/meadej/edgetech-gdl90/internal/config"
	"github.com/meadej/edgetech-gdl90/internal/metrics"
	"github.com/meadej/edgetech-gdl90/internal/traffic"
)

// HTTPServer provides HTTP API endpoints for monitoring
type HTTPServer struct {
	server   *http.Server
	logger   *slog.Logger
	config   *config.Config
	deps     HTTPDeps
	gatherer prometheus.Gatherer

	startTime time.Time
}

// HTTPDeps are the components the API reports on. UDP may be nil when
// replaying a capture.
type HTTPDeps struct {
	UDP      *UDPServer
	Pipeline *Pipeline
	Worker   *bus.Worker
	Traffic  *traffic.Manager
	Metrics  *metrics.Metrics
}

// NewHTTPServer creates a new HTTP API server. Metrics are served from
// gatherer.
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, appConfig *config.Config, deps HTTPDeps, gatherer prometheus.Gatherer) *HTTPServer {
	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		deps:      deps,
		gatherer:  gatherer,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	mux.HandleFunc("/traffic", h.withMetrics("/traffic", h.handleTraffic))
	mux.HandleFunc("/traffic/", h.withMetrics("/traffic/{address}", h.handleTrafficDetail))

	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// Handler exposes the routed handler
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.deps.Metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.deps.Metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	components := map[string]interface{}{
		"pipeline": map[string]interface{}{
			"status":              "running",
			"last_heartbeat_s":    h.deps.Pipeline.LastHeartbeat(),
			"traffic_reports":     h.deps.Pipeline.GetStats().TrafficReports,
			"heartbeats_received": h.deps.Pipeline.GetStats().Heartbeats,
		},
	}
	if h.deps.UDP != nil {
		udpStats := h.deps.UDP.GetStatistics()
		components["udp_server"] = map[string]interface{}{
			"status":             "running",
			"address":            udpStats.Address,
			"datagrams_received": udpStats.DatagramsReceived,
			"last_datagram_at":   udpStats.LastDatagramAt,
		}
	}
	if h.deps.Worker != nil {
		ws := h.deps.Worker.GetStats()
		components["publisher"] = map[string]interface{}{
			"status":     "running",
			"type":       h.config.Publisher.Type,
			"published":  ws.Published,
			"failed":     ws.Failed,
			"queue_size": ws.QueueSize,
		}
	}
	if h.deps.Traffic != nil {
		components["traffic"] = map[string]interface{}{
			"status":       "running",
			"participants": h.deps.Traffic.ActiveCount(),
		}
	}

	writeJSON(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":      "edgetech-gdl90",
			"version":   "1.0.0",
			"sensor_id": h.config.Publisher.SensorID,
		},
		"components": components,
	})
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"decoder":   h.deps.Pipeline.GetStats(),
	}
	if h.deps.UDP != nil {
		stats["udp"] = h.deps.UDP.GetStatistics()
	}
	if h.deps.Worker != nil {
		stats["publisher"] = h.deps.Worker.GetStats()
	}
	if h.deps.Traffic != nil {
		stats["traffic"] = map[string]interface{}{
			"active_count": h.deps.Traffic.ActiveCount(),
		}
	}

	writeJSON(w, stats)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// credentials are left out
	writeJSON(w, map[string]interface{}{
		"server": map[string]interface{}{
			"udp_port":     h.config.Server.UDPPort,
			"bind_address": h.config.Server.BindAddress,
			"buffer_size":  h.config.Server.BufferSize,
		},
		"queue": map[string]interface{}{
			"capacity":        h.config.Queue.Capacity,
			"publish_timeout": h.config.Queue.PublishTimeout,
			"drain_timeout":   h.config.Queue.DrainTimeout,
		},
		"publisher": map[string]interface{}{
			"type":      h.config.Publisher.Type,
			"sensor_id": h.config.Publisher.SensorID,
			"mqtt": map[string]interface{}{
				"broker":          h.config.Publisher.MQTT.Broker,
				"heartbeat_topic": h.config.Publisher.MQTT.HeartbeatTopic,
				"traffic_topic":   h.config.Publisher.MQTT.TrafficTopic,
				"qos":             h.config.Publisher.MQTT.QoS,
			},
			"webhook": map[string]interface{}{
				"endpoint":    h.config.Publisher.Webhook.Endpoint,
				"timeout":     h.config.Publisher.Webhook.Timeout,
				"max_retries": h.config.Publisher.Webhook.MaxRetries,
			},
			"jsonl": map[string]interface{}{
				"path": h.config.Publisher.JSONL.Path,
			},
		},
		"traffic": map[string]interface{}{
			"timeout":          h.config.Traffic.Timeout,
			"cleanup_interval": h.config.Traffic.CleanupInterval,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	})
}

// handleTraffic implements the /traffic endpoint
func (h *HTTPServer) handleTraffic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.deps.Traffic == nil {
		http.Error(w, "Traffic tracking disabled", http.StatusServiceUnavailable)
		return
	}

	participants := h.deps.Traffic.All()
	writeJSON(w, map[string]interface{}{
		"total":        len(participants),
		"timestamp":    time.Now().UTC(),
		"participants": participants,
	})
}

// handleTrafficDetail implements the /traffic/{address} endpoint
func (h *HTTPServer) handleTrafficDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.deps.Traffic == nil {
		http.Error(w, "Traffic tracking disabled", http.StatusServiceUnavailable)
		return
	}

	address := strings.TrimPrefix(r.URL.Path, "/traffic/")
	if address == "" {
		http.Error(w, "Participant address required", http.StatusBadRequest)
		return
	}

	info, exists := h.deps.Traffic.GetByHex(address)
	if !exists {
		http.Error(w, "Participant not found", http.StatusNotFound)
		return
	}

	writeJSON(w, info)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, map[string]interface{}{
		"service": "EdgeTech GDL90 Bridge",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                  "API documentation",
			"GET /health":            "Service health check",
			"GET /stats":             "Decoder, listener and publisher statistics",
			"GET /config":            "Service configuration without credentials",
			"GET /traffic":           "Live traffic participants",
			"GET /traffic/{address}": "One participant by hex address",
			"GET /metrics":           "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	})
}
