package gdl90

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch(t *testing.T) {
	hbFrame, err := DecodeFrame(icdHeartbeat)
	require.NoError(t, err)

	msg, err := Dispatch(hbFrame)
	require.NoError(t, err)
	hb, ok := msg.(Heartbeat)
	require.True(t, ok, "expected Heartbeat, got %T", msg)
	assert.Equal(t, uint32(0xD0DB), hb.TimestampSeconds)

	trFrame, err := DecodeFrame(EncodeFrame(icdTraffic))
	require.NoError(t, err)

	msg, err = Dispatch(trFrame)
	require.NoError(t, err)
	tr, ok := msg.(TrafficReport)
	require.True(t, ok, "expected TrafficReport, got %T", msg)
	assert.Equal(t, "AB4549", tr.AddressHex())
}

func TestDispatchUnsupported(t *testing.T) {
	for _, id := range []uint8{2, 7, 10, 11, 30, 101, 255} {
		f, err := DecodeFrame(EncodeFrame([]byte{id, 0x01, 0x02, 0x03}))
		require.NoError(t, err)

		msg, err := Dispatch(f)
		assert.Nil(t, msg)
		assert.ErrorIs(t, err, ErrUnsupportedMessage)
		assert.False(t, Supported(id))
	}
	assert.True(t, Supported(MessageIDHeartbeat))
	assert.True(t, Supported(MessageIDTrafficReport))
}

func TestDispatchLengthMismatch(t *testing.T) {
	f, err := DecodeFrame(EncodeFrame([]byte{MessageIDTrafficReport, 0x00, 0x01}))
	require.NoError(t, err)

	msg, err := Dispatch(f)
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestMessageName(t *testing.T) {
	assert.Equal(t, "heartbeat", MessageName(0))
	assert.Equal(t, "traffic_report", MessageName(20))
	assert.Equal(t, "ownship_report", MessageName(10))
	assert.Equal(t, "id_99", MessageName(99))
}
