package gdl90

import "time"

const (
	MessageIDHeartbeat uint8 = 0

	// HeartbeatLen is the message id plus six payload bytes.
	HeartbeatLen = 7
)

// Status byte 1.
const (
	statusPositionValid  = 0x80
	statusMaintenanceReq = 0x40
	statusIdent          = 0x20
	statusAddressType    = 0x10
	statusGPSBatteryLow  = 0x08
	statusRATCS          = 0x04
	statusUATInitialized = 0x01
)

// Status byte 2.
const (
	statusTimestampMSB    = 0x80
	statusCSARequested    = 0x40
	statusCSANotAvailable = 0x20
	statusUTCOK           = 0x01
)

// Heartbeat is a decoded GDL90 Heartbeat message (ID 0).
type Heartbeat struct {
	// status byte 1
	UATInitialized      bool `json:"uat_initialized"`
	PositionValid       bool `json:"position_valid"`
	MaintenanceRequired bool `json:"maintenance_required"`
	IdentActive         bool `json:"ident_active"`
	AddressTalkback     bool `json:"address_type_talkback"`
	GPSBatteryLow       bool `json:"gps_battery_low"`
	RATCS               bool `json:"ratcs"`

	// status byte 2
	UTCOK           bool `json:"utc_ok"`
	CSARequested    bool `json:"csa_requested"`
	CSANotAvailable bool `json:"csa_not_available"`

	// TimestampSeconds is seconds since 0000Z, 17 bits.
	TimestampSeconds uint32 `json:"timestamp_s"`
	UplinkCount      uint8  `json:"uplink_count"`
	BasicLongCount   uint16 `json:"basic_long_count"`

	ReceivedAt time.Time `json:"received_at"`
}

// MessageID implements Message.
func (Heartbeat) MessageID() uint8 { return MessageIDHeartbeat }

// WithReceivedAt returns a copy of h stamped with the receive time.
func (h Heartbeat) WithReceivedAt(t time.Time) Heartbeat {
	h.ReceivedAt = t
	return h
}

// DecodeHeartbeat decodes a heartbeat message including its id byte.
func DecodeHeartbeat(msg []byte) (Heartbeat, error) {
	if len(msg) != HeartbeatLen {
		return Heartbeat{}, &DecodeError{MessageID: MessageIDHeartbeat, Want: HeartbeatLen, Got: len(msg)}
	}

	s1, s2 := msg[1], msg[2]
	ts := uint32(s2&statusTimestampMSB)<<9 | uint32(msg[4])<<8 | uint32(msg[3])

	return Heartbeat{
		UATInitialized:      s1&statusUATInitialized != 0,
		PositionValid:       s1&statusPositionValid != 0,
		MaintenanceRequired: s1&statusMaintenanceReq != 0,
		IdentActive:         s1&statusIdent != 0,
		AddressTalkback:     s1&statusAddressType != 0,
		GPSBatteryLow:       s1&statusGPSBatteryLow != 0,
		RATCS:               s1&statusRATCS != 0,

		UTCOK:           s2&statusUTCOK != 0,
		CSARequested:    s2&statusCSARequested != 0,
		CSANotAvailable: s2&statusCSANotAvailable != 0,

		TimestampSeconds: ts,
		UplinkCount:      msg[5] >> 3,
		BasicLongCount:   uint16(msg[5]&0x03)<<8 | uint16(msg[6]),
	}, nil
}
