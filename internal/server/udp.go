package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/meadej/edgetech-gdl90/internal/config"
	"github.com/meadej/edgetech-gdl90/internal/metrics"
)

const readPollInterval = 1 * time.Second

// UDPServer receives GDL90 datagrams on one endpoint and hands each to the
// handler before reading the next.
type UDPServer struct {
	conn    UDPSocket
	factory SocketFactory
	config  *config.ServerConfig
	logger  *slog.Logger
	handler DatagramHandler
	metrics *metrics.Metrics

	// Concurrency management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	fatal  chan error

	// Statistics
	datagramsReceived uint64
	bytesReceived     uint64
	readErrors        uint64
	lastDatagramAt    time.Time
	mu                sync.RWMutex
}

// ServerStatistics represents listener statistics
type ServerStatistics struct {
	Address           string    `json:"address"`
	DatagramsReceived uint64    `json:"datagrams_received"`
	BytesReceived     uint64    `json:"bytes_received"`
	ReadErrors        uint64    `json:"read_errors"`
	LastDatagramAt    time.Time `json:"last_datagram_at"`
}

// NewUDPServer creates a new UDP server instance. A nil factory uses real
// sockets.
func NewUDPServer(cfg *config.ServerConfig, logger *slog.Logger, handler DatagramHandler, m *metrics.Metrics, factory SocketFactory) *UDPServer {
	ctx, cancel := context.WithCancel(context.Background())
	if factory == nil {
		factory = NetSocketFactory{}
	}

	return &UDPServer{
		factory: factory,
		config:  cfg,
		logger:  logger,
		handler: handler,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		fatal:   make(chan error, 1),
	}
}

// Start binds the socket and begins receiving. A bind failure is returned
// and nothing is started.
func (s *UDPServer) Start() error {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(s.config.BindAddress, fmt.Sprint(s.config.UDPPort)))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := s.factory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}
	s.conn = conn

	if err := s.conn.SetReadBuffer(s.config.BufferSize); err != nil {
		s.logger.Warn("Failed to set UDP read buffer size",
			slog.Int("buffer_size", s.config.BufferSize),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("UDP server started",
		slog.String("address", s.conn.LocalAddr().String()),
		slog.Int("buffer_size", s.config.BufferSize),
	)

	s.wg.Add(1)
	go s.receiveLoop()

	return nil
}

// Fatal delivers an error when the socket fails outside of shutdown.
func (s *UDPServer) Fatal() <-chan error {
	return s.fatal
}

// Stop ends the receive loop and waits for the datagram in progress to be
// handled. The socket stays open until Close.
func (s *UDPServer) Stop() {
	s.logger.Info("Stopping UDP server...")
	s.cancel()
	s.wg.Wait()
}

// Close releases the socket.
func (s *UDPServer) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()

	stats := s.GetStatistics()
	s.logger.Info("UDP server stopped",
		slog.Uint64("datagrams_received", stats.DatagramsReceived),
		slog.Uint64("read_errors", stats.ReadErrors),
	)
	return err
}

func (s *UDPServer) receiveLoop() {
	defer s.wg.Done()

	buffer := make([]byte, s.config.BufferSize)

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug("Receive loop stopping due to context cancellation")
			return
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(readPollInterval)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.reportFatal(err)
				return
			}
			s.logger.Error("Failed to set read deadline", slog.String("error", err.Error()))
		}

		n, remoteAddr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			select {
			case <-s.ctx.Done():
				return
			default:
			}

			if errors.Is(err, net.ErrClosed) {
				s.reportFatal(err)
				return
			}

			s.mu.Lock()
			s.readErrors++
			s.mu.Unlock()
			s.metrics.RecordReadError()
			s.logger.Warn("Failed to read UDP datagram", slog.String("error", err.Error()))
			continue
		}

		receivedAt := time.Now()
		s.mu.Lock()
		s.datagramsReceived++
		s.bytesReceived += uint64(n)
		s.lastDatagramAt = receivedAt
		s.mu.Unlock()
		s.metrics.RecordDatagramReceived()

		// buffer is reused on the next read
		datagram := make([]byte, n)
		copy(datagram, buffer[:n])

		if remoteAddr != nil {
			s.logger.Debug("Datagram received",
				slog.String("remote_addr", remoteAddr.String()),
				slog.Int("size", n),
			)
		}
		s.handler.HandleDatagram(datagram, receivedAt)
	}
}

func (s *UDPServer) reportFatal(err error) {
	s.logger.Error("UDP socket failed", slog.String("error", err.Error()))
	select {
	case s.fatal <- fmt.Errorf("udp socket: %w", err):
	default:
	}
}

// GetStatistics returns current listener statistics
func (s *UDPServer) GetStatistics() ServerStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addr := ""
	if s.conn != nil {
		addr = s.conn.LocalAddr().String()
	}
	return ServerStatistics{
		Address:           addr,
		DatagramsReceived: s.datagramsReceived,
		BytesReceived:     s.bytesReceived,
		ReadErrors:        s.readErrors,
		LastDatagramAt:    s.lastDatagramAt,
	}
}
