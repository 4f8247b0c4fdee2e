package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meadej/edgetech-gdl90/internal/gdl90"
)

// Envelope is the JSON document published for every record.
type Envelope struct {
	ID         string    `json:"id"`
	Type       TopicKind `json:"type"`
	Source     string    `json:"source"`
	ReceivedAt time.Time `json:"received_at"`
	Record     any       `json:"record"`
}

type trafficEnvelope struct {
	Envelope
	// HeartbeatTimestamp is the time of applicability from the most recent
	// heartbeat, null until one has been seen.
	HeartbeatTimestamp gdl90.Optional[uint32] `json:"heartbeat_timestamp_s"`
}

// trafficRecord adds derived fields to the decoded report.
type trafficRecord struct {
	gdl90.TrafficReport
	AddressHex      string `json:"address_hex"`
	AddressTypeName string `json:"address_type_name"`
	EmitterName     string `json:"emitter_category_name"`
	EmergencyName   string `json:"emergency_name"`
	TrackType       string `json:"track_type"`
	Airborne        bool   `json:"airborne"`
	Extrapolated    bool   `json:"extrapolated"`
	PositionValid   bool   `json:"position_valid"`
}

// HeartbeatMessage serializes hb for the heartbeat topic.
func HeartbeatMessage(source string, hb gdl90.Heartbeat) (Message, error) {
	body, err := json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Type:       TopicHeartbeat,
		Source:     source,
		ReceivedAt: hb.ReceivedAt,
		Record:     hb,
	})
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal heartbeat: %w", err)
	}

	return Message{Topic: TopicHeartbeat, Body: body, ReceivedAt: hb.ReceivedAt}, nil
}

// TrafficMessage serializes r keyed by its participant address.
func TrafficMessage(source string, r gdl90.TrafficReport, lastHeartbeat gdl90.Optional[uint32]) (Message, error) {
	body, err := json.Marshal(trafficEnvelope{
		Envelope: Envelope{
			ID:         uuid.NewString(),
			Type:       TopicTrafficReport,
			Source:     source,
			ReceivedAt: r.ReceivedAt,
			Record: trafficRecord{
				TrafficReport:   r,
				AddressHex:      r.AddressHex(),
				AddressTypeName: r.AddressType.String(),
				EmitterName:     r.Emitter.String(),
				EmergencyName:   r.EmergencyCode.String(),
				TrackType:       r.TrackType().String(),
				Airborne:        r.Airborne(),
				Extrapolated:    r.Extrapolated(),
				PositionValid:   r.PositionValid(),
			},
		},
		HeartbeatTimestamp: lastHeartbeat,
	})
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal traffic report %s: %w", r.AddressHex(), err)
	}

	return Message{
		Topic:      TopicTrafficReport,
		Key:        r.AddressHex(),
		Body:       body,
		ReceivedAt: r.ReceivedAt,
	}, nil
}
