package traffic

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/meadej/edgetech-gdl90/internal/gdl90"
	"github.com/meadej/edgetech-gdl90/internal/metrics"
)

// Participant is one tracked traffic target
type Participant struct {
	Address   uint32
	FirstSeen time.Time
	LastSeen  time.Time
	Reports   uint64
	Last      gdl90.TrafficReport
}

// ParticipantInfo is a read-only snapshot of a participant
type ParticipantInfo struct {
	Address   string              `json:"address"`
	CallSign  string              `json:"call_sign"`
	FirstSeen time.Time           `json:"first_seen"`
	LastSeen  time.Time           `json:"last_seen"`
	Reports   uint64              `json:"reports"`
	Last      gdl90.TrafficReport `json:"last_report"`
}

// Config controls participant expiry
type Config struct {
	Timeout         time.Duration
	CleanupInterval time.Duration
}

// Manager tracks every participant address seen in traffic reports
type Manager struct {
	participants map[uint32]*Participant
	mu           sync.RWMutex
	logger       *slog.Logger
	metrics      *metrics.Metrics
	timeout      time.Duration
	interval     time.Duration
	now          func() time.Time

	// Cleanup management
	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewManager creates a manager and starts its expiry routine. m may be nil.
func NewManager(logger *slog.Logger, cfg Config, m *metrics.Metrics) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Second
	}

	mgr := &Manager{
		participants: make(map[uint32]*Participant),
		logger:       logger,
		metrics:      m,
		timeout:      cfg.Timeout,
		interval:     cfg.CleanupInterval,
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
		cleanup:      make(chan struct{}),
	}

	go mgr.startCleanupRoutine()

	return mgr
}

// Observe records a traffic report. It returns true the first time an
// address is seen.
func (m *Manager) Observe(r gdl90.TrafficReport) bool {
	seen := r.ReceivedAt
	if seen.IsZero() {
		seen = m.now()
	}

	m.mu.Lock()
	p, exists := m.participants[r.Address]
	if !exists {
		p = &Participant{Address: r.Address, FirstSeen: seen}
		m.participants[r.Address] = p
	}
	p.LastSeen = seen
	p.Reports++
	p.Last = r
	count := len(m.participants)
	m.mu.Unlock()

	if !exists {
		m.logger.Debug("New traffic participant",
			slog.String("address", r.AddressHex()),
			slog.String("call_sign", r.TrimmedCallSign()),
			slog.String("address_type", r.AddressType.String()),
		)
		m.setActive(count)
	}

	return !exists
}

// Get returns a snapshot of the participant with the given address
func (m *Manager) Get(address uint32) (ParticipantInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.participants[address]
	if !exists {
		return ParticipantInfo{}, false
	}
	return p.info(), true
}

// GetByHex looks a participant up by its six digit hex address
func (m *Manager) GetByHex(hex string) (ParticipantInfo, bool) {
	address, err := strconv.ParseUint(hex, 16, 24)
	if err != nil {
		return ParticipantInfo{}, false
	}
	return m.Get(uint32(address))
}

// All returns snapshots of every tracked participant ordered by address
func (m *Manager) All() []ParticipantInfo {
	m.mu.RLock()
	infos := make([]ParticipantInfo, 0, len(m.participants))
	for _, p := range m.participants {
		infos = append(infos, p.info())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Address < infos[j].Address })
	return infos
}

// ActiveCount returns the number of tracked participants
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.participants)
}

// Remove drops a participant and reports whether it was tracked
func (m *Manager) Remove(address uint32) bool {
	m.mu.Lock()
	_, exists := m.participants[address]
	delete(m.participants, address)
	count := len(m.participants)
	m.mu.Unlock()

	if exists {
		m.setActive(count)
	}
	return exists
}

// Stop ends the expiry routine
func (m *Manager) Stop() {
	m.cancel()
	<-m.cleanup

	m.logger.Info("Traffic manager stopped",
		slog.Int("remaining_participants", m.ActiveCount()),
	)
}

func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanupExpired()
		}
	}
}

// cleanupExpired removes participants quiet for longer than the timeout and
// returns how many were removed.
func (m *Manager) cleanupExpired() int {
	if m.timeout <= 0 {
		return 0
	}
	now := m.now()

	m.mu.Lock()
	expired := 0
	for address, p := range m.participants {
		if now.Sub(p.LastSeen) > m.timeout {
			delete(m.participants, address)
			expired++
		}
	}
	count := len(m.participants)
	m.mu.Unlock()

	if expired > 0 {
		m.logger.Debug("Expired traffic participants",
			slog.Int("expired_count", expired),
			slog.Int("remaining", count),
		)
		if m.metrics != nil {
			m.metrics.RecordTrafficExpired(expired)
		}
		m.setActive(count)
	}
	return expired
}

func (m *Manager) setActive(count int) {
	if m.metrics != nil {
		m.metrics.SetActiveTraffic(count)
	}
}

func (p *Participant) info() ParticipantInfo {
	return ParticipantInfo{
		Address:   p.Last.AddressHex(),
		CallSign:  p.Last.TrimmedCallSign(),
		FirstSeen: p.FirstSeen,
		LastSeen:  p.LastSeen,
		Reports:   p.Reports,
		Last:      p.Last,
	}
}
