package bus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meadej/edgetech-gdl90/internal/gdl90"
)

func TestHeartbeatMessage(t *testing.T) {
	ts := time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC)
	hb := gdl90.Heartbeat{UATInitialized: true, TimestampSeconds: 3600}.WithReceivedAt(ts)

	msg, err := HeartbeatMessage("sensor-1", hb)
	require.NoError(t, err)
	assert.Equal(t, TopicHeartbeat, msg.Topic)
	assert.Empty(t, msg.Key)
	assert.Equal(t, ts, msg.ReceivedAt)

	var env map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &env))

	_, err = uuid.Parse(env["id"].(string))
	assert.NoError(t, err)
	assert.Equal(t, "heartbeat", env["type"])
	assert.Equal(t, "sensor-1", env["source"])
	assert.NotContains(t, env, "heartbeat_timestamp_s")

	record := env["record"].(map[string]any)
	assert.Equal(t, true, record["uat_initialized"])
	assert.Equal(t, false, record["utc_ok"])
	assert.Equal(t, float64(3600), record["timestamp_s"])
}

func TestTrafficMessage(t *testing.T) {
	r := gdl90.TrafficReport{
		Address:            0xAB4549,
		Latitude:           44.9,
		Longitude:          -122.99,
		Altitude:           gdl90.Unknown[int32](),
		Misc:               9,
		NIC:                10,
		HorizontalVelocity: gdl90.Known[uint16](123),
		VerticalVelocity:   gdl90.Known[int32](64),
		Emitter:            1,
		CallSign:           "N825V   ",
		ReceivedAt:         time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC),
	}

	msg, err := TrafficMessage("sensor-1", r, gdl90.Known[uint32](3600))
	require.NoError(t, err)
	assert.Equal(t, TopicTrafficReport, msg.Topic)
	assert.Equal(t, "AB4549", msg.Key)

	var env map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &env))
	assert.Equal(t, "traffic_report", env["type"])
	assert.Equal(t, float64(3600), env["heartbeat_timestamp_s"])

	record := env["record"].(map[string]any)
	assert.Contains(t, record, "altitude_ft")
	assert.Nil(t, record["altitude_ft"])
	assert.Equal(t, float64(123), record["horizontal_velocity_kt"])
	assert.Equal(t, "AB4549", record["address_hex"])
	assert.Equal(t, "N825V   ", record["call_sign"])
	assert.Equal(t, "light", record["emitter_category_name"])
	assert.Equal(t, "true_track", record["track_type"])
	assert.Equal(t, true, record["airborne"])
	assert.Equal(t, true, record["position_valid"])
}

func TestTrafficMessageWithoutHeartbeat(t *testing.T) {
	msg, err := TrafficMessage("sensor-1", gdl90.TrafficReport{Address: 1}, gdl90.Unknown[uint32]())
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &env))
	assert.Contains(t, env, "heartbeat_timestamp_s")
	assert.Nil(t, env["heartbeat_timestamp_s"])
	assert.Equal(t, "000001", msg.Key)
}
