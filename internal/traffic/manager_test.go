package traffic

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meadej/edgetech-gdl90/internal/gdl90"
	"github.com/meadej/edgetech-gdl90/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func report(address uint32, callSign string, at time.Time) gdl90.TrafficReport {
	return gdl90.TrafficReport{Address: address, CallSign: callSign, ReceivedAt: at}
}

func TestManagerObserve(t *testing.T) {
	mgr := NewManager(testLogger(), Config{Timeout: time.Minute, CleanupInterval: time.Hour}, nil)
	defer mgr.Stop()

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, mgr.Observe(report(0xAB4549, "N825V   ", t0)))
	assert.False(t, mgr.Observe(report(0xAB4549, "N825V   ", t0.Add(time.Second))))
	assert.True(t, mgr.Observe(report(0x000001, "TEST    ", t0)))

	assert.Equal(t, 2, mgr.ActiveCount())

	info, ok := mgr.Get(0xAB4549)
	require.True(t, ok)
	assert.Equal(t, "AB4549", info.Address)
	assert.Equal(t, "N825V", info.CallSign)
	assert.Equal(t, uint64(2), info.Reports)
	assert.Equal(t, t0, info.FirstSeen)
	assert.Equal(t, t0.Add(time.Second), info.LastSeen)

	byHex, ok := mgr.GetByHex("ab4549")
	require.True(t, ok)
	assert.Equal(t, info, byHex)

	_, ok = mgr.GetByHex("not-hex")
	assert.False(t, ok)

	all := mgr.All()
	require.Len(t, all, 2)
	assert.Equal(t, "000001", all[0].Address)
	assert.Equal(t, "AB4549", all[1].Address)
}

func TestManagerExpiry(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	mgr := NewManager(testLogger(), Config{Timeout: 30 * time.Second, CleanupInterval: time.Hour}, m)
	defer mgr.Stop()

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mgr.Observe(report(1, "", t0))
	mgr.Observe(report(2, "", t0.Add(20*time.Second)))

	mgr.now = func() time.Time { return t0.Add(40 * time.Second) }
	assert.Equal(t, 1, mgr.cleanupExpired())

	_, ok := mgr.Get(1)
	assert.False(t, ok)
	_, ok = mgr.Get(2)
	assert.True(t, ok)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TrafficExpired))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveTraffic))
}

func TestManagerRemove(t *testing.T) {
	mgr := NewManager(testLogger(), Config{Timeout: time.Minute}, nil)
	defer mgr.Stop()

	mgr.Observe(report(7, "", time.Now()))
	assert.True(t, mgr.Remove(7))
	assert.False(t, mgr.Remove(7))
	assert.Equal(t, 0, mgr.ActiveCount())
}

func TestManagerCleanupRoutine(t *testing.T) {
	mgr := NewManager(testLogger(), Config{Timeout: time.Millisecond, CleanupInterval: 5 * time.Millisecond}, nil)
	defer mgr.Stop()

	mgr.Observe(report(9, "", time.Now().Add(-time.Second)))

	assert.Eventually(t, func() bool { return mgr.ActiveCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestManagerConcurrentObserve(t *testing.T) {
	mgr := NewManager(testLogger(), Config{Timeout: time.Minute, CleanupInterval: time.Hour}, nil)
	defer mgr.Stop()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				mgr.Observe(report(uint32(i%10), "", time.Now()))
				_ = mgr.All()
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 10, mgr.ActiveCount())
	var total uint64
	for _, p := range mgr.All() {
		total += p.Reports
	}
	assert.Equal(t, uint64(800), total)
}
