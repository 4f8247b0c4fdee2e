package replay

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// pcapng files start with a section header block
var pcapngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

// Handler consumes replayed datagrams. server.Pipeline satisfies it.
type Handler interface {
	HandleDatagram(datagram []byte, receivedAt time.Time)
}

// Options controls which packets are replayed and how fast.
type Options struct {
	// Port keeps only UDP datagrams sent to this port. Zero keeps all.
	Port int
	// Realtime sleeps between packets to reproduce the captured spacing.
	Realtime bool
}

// Stats summarizes one replay.
type Stats struct {
	Packets   uint64    `json:"packets"`
	Datagrams uint64    `json:"datagrams"`
	Skipped   uint64    `json:"skipped"`
	First     time.Time `json:"first"`
	Last      time.Time `json:"last"`
}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// ReadFile replays the capture at path into handler.
func ReadFile(ctx context.Context, path string, handler Handler, opts Options, logger *slog.Logger) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	defer f.Close()

	logger.Info("Replaying capture",
		slog.String("path", path),
		slog.Int("port", opts.Port),
		slog.Bool("realtime", opts.Realtime),
	)

	return Read(ctx, f, handler, opts, logger)
}

// Read replays a pcap or pcapng stream into handler until the stream ends or
// ctx is done.
func Read(ctx context.Context, r io.Reader, handler Handler, opts Options, logger *slog.Logger) (Stats, error) {
	src, err := openReader(r)
	if err != nil {
		return Stats{}, err
	}

	var (
		stats   Stats
		prev    time.Time
		started = time.Now()
	)
	for {
		if err := ctx.Err(); err != nil {
			logger.Info("Replay stopped", slog.Uint64("datagrams", stats.Datagrams))
			return stats, err
		}

		data, ci, err := src.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		payload, ok := udpPayload(data, src.LinkType(), opts.Port)
		if !ok {
			stats.Skipped++
			continue
		}

		if opts.Realtime && !prev.IsZero() {
			if err := sleepContext(ctx, ci.Timestamp.Sub(prev)); err != nil {
				return stats, err
			}
		}
		prev = ci.Timestamp

		if stats.First.IsZero() {
			stats.First = ci.Timestamp
		}
		stats.Last = ci.Timestamp
		stats.Datagrams++

		handler.HandleDatagram(payload, ci.Timestamp)
	}

	logger.Info("Replay complete",
		slog.Uint64("packets", stats.Packets),
		slog.Uint64("datagrams", stats.Datagrams),
		slog.Uint64("skipped", stats.Skipped),
		slog.Duration("elapsed", time.Since(started)),
	)
	return stats, nil
}

func openReader(r io.Reader) (packetReader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}

	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to open pcapng capture: %w", err)
		}
		return ng, nil
	}

	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap capture: %w", err)
	}
	return pr, nil
}

// udpPayload extracts a copy of the UDP payload when the packet is UDP to the
// wanted port.
func udpPayload(data []byte, linkType layers.LinkType, port int) ([]byte, bool) {
	packet := gopacket.NewPacket(data, linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return nil, false
	}
	udp, ok := udpLayer.(*layers.UDP)
	if !ok || len(udp.Payload) == 0 {
		return nil, false
	}
	if port != 0 && udp.DstPort != layers.UDPPort(port) {
		return nil, false
	}

	return append([]byte(nil), udp.Payload...), true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
