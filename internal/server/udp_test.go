package server

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meadej/edgetech-gdl90/internal/config"
	"github.com/meadej/edgetech-gdl90/internal/metrics"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// mockSocket is a UDPSocket fed from a slice. Reads past the end report
// a timeout, like a real socket with a deadline.
type mockSocket struct {
	mu             sync.Mutex
	packets        [][]byte
	readErr        error
	bufferErr      error
	readBufferSize int
	closed         bool
	local          *net.UDPAddr
}

func newMockSocket(packets ...[]byte) *mockSocket {
	return &mockSocket{
		packets: packets,
		local:   &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4000},
	}
}

func (m *mockSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, nil, net.ErrClosed
	}
	if m.readErr != nil {
		err := m.readErr
		m.readErr = nil
		m.mu.Unlock()
		return 0, nil, err
	}
	if len(m.packets) == 0 {
		m.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: timeoutError{}}
	}
	pkt := m.packets[0]
	m.packets = m.packets[1:]
	m.mu.Unlock()

	n := copy(b, pkt)
	return n, &net.UDPAddr{IP: net.ParseIP("192.168.10.1"), Port: 43211}, nil
}

func (m *mockSocket) SetReadBuffer(bytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bufferErr != nil {
		return m.bufferErr
	}
	m.readBufferSize = bytes
	return nil
}

func (m *mockSocket) SetReadDeadline(time.Time) error { return nil }

func (m *mockSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSocket) LocalAddr() net.Addr { return m.local }

func (m *mockSocket) push(pkt []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packets = append(m.packets, pkt)
}

func (m *mockSocket) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type mockFactory struct {
	socket *mockSocket
	err    error
	addr   *net.UDPAddr
}

func (f *mockFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	f.addr = laddr
	if f.err != nil {
		return nil, f.err
	}
	return f.socket, nil
}

// recordingHandler keeps a copy of every datagram it is handed.
type recordingHandler struct {
	mu        sync.Mutex
	datagrams [][]byte
	times     []time.Time
}

func (h *recordingHandler) HandleDatagram(datagram []byte, receivedAt time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.datagrams = append(h.datagrams, datagram)
	h.times = append(h.times, receivedAt)
}

func (h *recordingHandler) received() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]byte(nil), h.datagrams...)
}

func testServerConfig() *config.ServerConfig {
	return &config.ServerConfig{UDPPort: 4000, BindAddress: "127.0.0.1", BufferSize: 2048}
}

func TestUDPServerDeliversDatagrams(t *testing.T) {
	sock := newMockSocket([]byte{0x7E, 0x01, 0x7E}, []byte{0x7E, 0x02, 0x02, 0x7E})
	factory := &mockFactory{socket: sock}
	handler := &recordingHandler{}
	m := metrics.NewMetrics(prometheus.NewRegistry())

	s := NewUDPServer(testServerConfig(), testLogger(), handler, m, factory)
	require.NoError(t, s.Start())
	assert.Equal(t, 4000, factory.addr.Port)

	require.Eventually(t, func() bool {
		return len(handler.received()) == 2
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	require.NoError(t, s.Close())
	assert.True(t, sock.isClosed())

	got := handler.received()
	assert.Equal(t, []byte{0x7E, 0x01, 0x7E}, got[0])
	assert.Equal(t, []byte{0x7E, 0x02, 0x02, 0x7E}, got[1])
	assert.False(t, handler.times[0].IsZero())

	stats := s.GetStatistics()
	assert.Equal(t, uint64(2), stats.DatagramsReceived)
	assert.Equal(t, uint64(7), stats.BytesReceived)
	assert.Equal(t, "127.0.0.1:4000", stats.Address)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DatagramsReceived))
	assert.Equal(t, 2048, sock.readBufferSize)
}

func TestUDPServerBindFailure(t *testing.T) {
	factory := &mockFactory{err: errors.New("address already in use")}
	s := NewUDPServer(testServerConfig(), testLogger(), &recordingHandler{}, metrics.NewMetrics(prometheus.NewRegistry()), factory)

	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen on UDP")
	assert.NoError(t, s.Close())
}

func TestUDPServerReadBufferFailureIsNotFatal(t *testing.T) {
	sock := newMockSocket([]byte{0x7E, 0x7E})
	sock.bufferErr = errors.New("not permitted")
	handler := &recordingHandler{}

	s := NewUDPServer(testServerConfig(), testLogger(), handler, metrics.NewMetrics(prometheus.NewRegistry()), &mockFactory{socket: sock})
	require.NoError(t, s.Start())
	defer s.Close()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return len(handler.received()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestUDPServerTransientReadError(t *testing.T) {
	sock := newMockSocket()
	sock.readErr = errors.New("connection refused")
	handler := &recordingHandler{}
	m := metrics.NewMetrics(prometheus.NewRegistry())

	s := NewUDPServer(testServerConfig(), testLogger(), handler, m, &mockFactory{socket: sock})
	require.NoError(t, s.Start())
	defer s.Close()
	defer s.Stop()

	sock.push([]byte{0x7E, 0x00, 0x7E})
	require.Eventually(t, func() bool {
		return len(handler.received()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, uint64(1), s.GetStatistics().ReadErrors)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadErrors))

	select {
	case err := <-s.Fatal():
		t.Fatalf("unexpected fatal error: %v", err)
	default:
	}
}

func TestUDPServerSocketClosedIsFatal(t *testing.T) {
	sock := newMockSocket()
	s := NewUDPServer(testServerConfig(), testLogger(), &recordingHandler{}, metrics.NewMetrics(prometheus.NewRegistry()), &mockFactory{socket: sock})
	require.NoError(t, s.Start())

	sock.Close()

	select {
	case err := <-s.Fatal():
		assert.ErrorIs(t, err, net.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("expected a fatal error after the socket closed")
	}
	s.Stop()
}

func TestUDPServerStopIsNotFatal(t *testing.T) {
	sock := newMockSocket()
	handler := &recordingHandler{}
	s := NewUDPServer(testServerConfig(), testLogger(), handler, metrics.NewMetrics(prometheus.NewRegistry()), &mockFactory{socket: sock})
	require.NoError(t, s.Start())

	s.Stop()
	sock.push([]byte{0x7E, 0x00, 0x7E})
	require.NoError(t, s.Close())

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, handler.received())
	select {
	case err := <-s.Fatal():
		t.Fatalf("unexpected fatal error: %v", err)
	default:
	}
}

func TestUDPServerRealSocket(t *testing.T) {
	cfg := &config.ServerConfig{UDPPort: 0, BindAddress: "127.0.0.1", BufferSize: 65536}
	handler := &recordingHandler{}

	s := NewUDPServer(cfg, testLogger(), handler, metrics.NewMetrics(prometheus.NewRegistry()), nil)
	require.NoError(t, s.Start())
	defer s.Close()
	defer s.Stop()

	conn, err := net.Dial("udp", s.GetStatistics().Address)
	require.NoError(t, err)
	defer conn.Close()

	frame := heartbeatFrame(1234)
	_, err = conn.Write(frame)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(handler.received()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, frame, handler.received()[0])
}
