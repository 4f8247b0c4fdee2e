// Command gdl90-sim sends synthetic GDL90 heartbeats and traffic reports over
// UDP for exercising the bridge without a receiver.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meadej/edgetech-gdl90/internal/gdl90"
)

type target struct {
	address  uint32
	callSign string
	radiusNM float64
	speedKt  uint16
	altitude int32
	phase    float64
}

func main() {
	addr := flag.String("addr", "127.0.0.1:4000", "Destination host:port")
	interval := flag.Duration("interval", time.Second, "Time between heartbeat cycles")
	targets := flag.Int("targets", 3, "Number of simulated traffic targets")
	count := flag.Int("count", 0, "Number of cycles to send, 0 runs until interrupted")
	corruptEvery := flag.Int("corrupt-every", 0, "Flip a checksum bit in every Nth datagram, 0 disables")
	centerLat := flag.Float64("lat", 38.8977, "Latitude the targets circle, degrees")
	centerLon := flag.Float64("lon", -77.0365, "Longitude the targets circle, degrees")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		logger.Error("Failed to open UDP socket", slog.String("addr", *addr), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()

	fleet := make([]target, *targets)
	for i := range fleet {
		fleet[i] = target{
			address:  0xA00000 + uint32(rand.Intn(0x0FFFFF)),
			callSign: fmt.Sprintf("SIM%03d", i+1),
			radiusNM: 2 + float64(i),
			speedKt:  uint16(90 + 20*i),
			altitude: int32(2500 + 1000*i),
			phase:    float64(i) * 2 * math.Pi / float64(len(fleet)),
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Simulator started",
		slog.String("addr", *addr),
		slog.Int("targets", len(fleet)),
		slog.Duration("interval", *interval),
	)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	sent := 0
	start := time.Now()
	for cycle := 0; *count == 0 || cycle < *count; cycle++ {
		now := time.Now().UTC()
		elapsed := now.Sub(start).Seconds()

		frames := [][]byte{gdl90.EncodeFrame(gdl90.EncodeHeartbeat(heartbeat(now)))}
		for _, t := range fleet {
			frames = append(frames, gdl90.EncodeFrame(gdl90.EncodeTrafficReport(t.report(*centerLat, *centerLon, elapsed))))
		}

		for _, frame := range frames {
			sent++
			if *corruptEvery > 0 && sent%*corruptEvery == 0 {
				frame[len(frame)-2] ^= 0x01
			}
			if _, err := conn.Write(frame); err != nil {
				logger.Warn("Failed to send datagram", slog.String("error", err.Error()))
			}
		}
		logger.Debug("Cycle sent", slog.Int("cycle", cycle), slog.Int("datagrams", len(frames)))

		select {
		case <-ctx.Done():
			logger.Info("Simulator stopped", slog.Int("datagrams_sent", sent))
			return
		case <-ticker.C:
		}
	}

	logger.Info("Simulator finished", slog.Int("datagrams_sent", sent))
}

func heartbeat(now time.Time) gdl90.Heartbeat {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return gdl90.Heartbeat{
		UATInitialized:   true,
		PositionValid:    true,
		UTCOK:            true,
		TimestampSeconds: uint32(now.Sub(midnight).Seconds()),
	}
}

// report places the target on its circle after elapsed seconds.
func (t target) report(lat, lon, elapsed float64) gdl90.TrafficReport {
	// angular speed in radians per second
	omega := float64(t.speedKt) / 3600 / t.radiusNM
	theta := t.phase + omega*elapsed

	dLat := t.radiusNM / 60 * math.Cos(theta)
	dLon := t.radiusNM / 60 * math.Sin(theta) / math.Cos(lat*math.Pi/180)

	// counter-clockwise circle, track is perpendicular to the radius
	track := math.Mod(360-theta*180/math.Pi+270, 360)
	if track < 0 {
		track += 360
	}

	return gdl90.TrafficReport{
		AddressType:        gdl90.AddressADSBICAO,
		Address:            t.address,
		Latitude:           lat + dLat,
		Longitude:          lon + dLon,
		Altitude:           gdl90.Known(t.altitude),
		Misc:               0x09,
		NIC:                8,
		NAC:                9,
		HorizontalVelocity: gdl90.Known(t.speedKt),
		VerticalVelocity:   gdl90.Known[int32](0),
		Track:              track,
		Emitter:            1,
		CallSign:           t.callSign,
	}
}
