package gdl90

import (
	"fmt"
	"strings"
	"time"
)

const (
	MessageIDTrafficReport uint8 = 20

	// TrafficReportLen is the message id plus 27 payload bytes.
	TrafficReportLen = 28

	CallSignLen = 8

	// LatLonResolution is degrees per count of the 24-bit position fields.
	LatLonResolution = 180.0 / (1 << 23)
	// TrackResolution is degrees per count of the 8-bit track field.
	TrackResolution = 360.0 / 256.0

	altitudeUnknown  = 0xFFF
	hVelocityUnknown = 0xFFF
	vVelocityUnknown = 0x800

	altitudeStepFt   = 25
	altitudeOffsetFt = -1000
	vVelocityStepFPM = 64
)

// Miscellaneous indicator bits (low nibble of the altitude byte pair).
const (
	miscTrackTypeMask = 0x03
	miscExtrapolated  = 0x04
	miscAirborne      = 0x08
)

// AddressType identifies how a participant address was assigned.
type AddressType uint8

const (
	AddressADSBICAO AddressType = iota
	AddressADSBSelfAssigned
	AddressTISBICAO
	AddressTISBTrackFile
	AddressSurfaceVehicle
	AddressGroundStation
)

func (a AddressType) String() string {
	switch a {
	case AddressADSBICAO:
		return "adsb_icao"
	case AddressADSBSelfAssigned:
		return "adsb_self_assigned"
	case AddressTISBICAO:
		return "tisb_icao"
	case AddressTISBTrackFile:
		return "tisb_track_file"
	case AddressSurfaceVehicle:
		return "surface_vehicle"
	case AddressGroundStation:
		return "ground_station_beacon"
	default:
		return fmt.Sprintf("reserved_%d", uint8(a))
	}
}

// TrackType is the meaning of the track/heading byte.
type TrackType uint8

const (
	TrackInvalid TrackType = iota
	TrackTrueTrack
	TrackMagneticHeading
	TrackTrueHeading
)

func (t TrackType) String() string {
	switch t {
	case TrackTrueTrack:
		return "true_track"
	case TrackMagneticHeading:
		return "magnetic_heading"
	case TrackTrueHeading:
		return "true_heading"
	default:
		return "invalid"
	}
}

// EmitterCategory is the ADS-B emitter category.
type EmitterCategory uint8

var emitterNames = map[EmitterCategory]string{
	0:  "no_info",
	1:  "light",
	2:  "small",
	3:  "large",
	4:  "high_vortex_large",
	5:  "heavy",
	6:  "highly_maneuverable",
	7:  "rotorcraft",
	9:  "glider",
	10: "lighter_than_air",
	11: "parachutist",
	12: "ultralight",
	14: "uav",
	15: "space_vehicle",
	17: "surface_emergency_vehicle",
	18: "surface_service_vehicle",
	19: "point_obstacle",
	20: "cluster_obstacle",
	21: "line_obstacle",
}

func (e EmitterCategory) String() string {
	if name, ok := emitterNames[e]; ok {
		return name
	}
	return fmt.Sprintf("reserved_%d", uint8(e))
}

// EmergencyCode is the emergency/priority status.
type EmergencyCode uint8

var emergencyNames = [...]string{
	"none",
	"general",
	"medical",
	"min_fuel",
	"no_comm",
	"unlawful_interference",
	"downed",
}

func (e EmergencyCode) String() string {
	if int(e) < len(emergencyNames) {
		return emergencyNames[e]
	}
	return fmt.Sprintf("reserved_%d", uint8(e))
}

// TrafficReport is a decoded GDL90 Traffic Report (ID 20).
type TrafficReport struct {
	AlertStatus uint8       `json:"alert_status"`
	AddressType AddressType `json:"address_type"`
	Address     uint32      `json:"address"`

	Latitude  float64 `json:"latitude_deg"`
	Longitude float64 `json:"longitude_deg"`

	Altitude Optional[int32] `json:"altitude_ft"`
	Misc     uint8           `json:"misc"`

	NIC uint8 `json:"nic"`
	NAC uint8 `json:"nac"`

	HorizontalVelocity Optional[uint16] `json:"horizontal_velocity_kt"`
	VerticalVelocity   Optional[int32]  `json:"vertical_velocity_fpm"`

	Track         float64         `json:"track_deg"`
	Emitter       EmitterCategory `json:"emitter_category"`
	CallSign      string          `json:"call_sign"`
	EmergencyCode EmergencyCode   `json:"emergency_code"`

	ReceivedAt time.Time `json:"received_at"`
}

// MessageID implements Message.
func (TrafficReport) MessageID() uint8 { return MessageIDTrafficReport }

// WithReceivedAt returns a copy of r stamped with the receive time.
func (r TrafficReport) WithReceivedAt(t time.Time) TrafficReport {
	r.ReceivedAt = t
	return r
}

// AddressHex formats the participant address as six upper-case hex digits.
func (r TrafficReport) AddressHex() string {
	return fmt.Sprintf("%06X", r.Address&0xFFFFFF)
}

// TrimmedCallSign returns the call sign without its space padding.
func (r TrafficReport) TrimmedCallSign() string {
	return strings.TrimRight(r.CallSign, " ")
}

func (r TrafficReport) TrackType() TrackType {
	return TrackType(r.Misc & miscTrackTypeMask)
}

// Extrapolated reports whether the report was extrapolated rather than updated.
func (r TrafficReport) Extrapolated() bool {
	return r.Misc&miscExtrapolated != 0
}

func (r TrafficReport) Airborne() bool {
	return r.Misc&miscAirborne != 0
}

// PositionValid is false for the all-zero position with NIC 0 that receivers
// emit when no position is available.
func (r TrafficReport) PositionValid() bool {
	return !(r.Latitude == 0 && r.Longitude == 0 && r.NIC == 0)
}

// DecodeTrafficReport decodes a traffic report message including its id byte.
// Field offsets below are relative to the first byte after the id.
func DecodeTrafficReport(msg []byte) (TrafficReport, error) {
	if len(msg) != TrafficReportLen {
		return TrafficReport{}, &DecodeError{MessageID: MessageIDTrafficReport, Want: TrafficReportLen, Got: len(msg)}
	}
	p := msg[1:]

	r := TrafficReport{
		AlertStatus: highNibble(p[0]),
		AddressType: AddressType(lowNibble(p[0])),
		Address:     uint24(p[1:4]),
		Latitude:    float64(int24(p[4:7])) * LatLonResolution,
		Longitude:   float64(int24(p[7:10])) * LatLonResolution,
		Misc:        lowNibble(p[11]),
		NIC:         highNibble(p[12]),
		NAC:         lowNibble(p[12]),
		Track:       float64(p[16]) * TrackResolution,
		Emitter:     EmitterCategory(p[17]),
		CallSign:    string(p[18:26]),
		// low nibble; the high nibble is treated as spare
		EmergencyCode: EmergencyCode(lowNibble(p[26])),
	}

	if code := uint12High(p[10], p[11]); code != altitudeUnknown {
		r.Altitude = Known(int32(code)*altitudeStepFt + altitudeOffsetFt)
	}
	if hv := uint12High(p[13], p[14]); hv != hVelocityUnknown {
		r.HorizontalVelocity = Known(hv)
	}
	if vv := uint12Low(p[14], p[15]); vv != vVelocityUnknown {
		r.VerticalVelocity = Known(int32(int12(vv)) * vVelocityStepFPM)
	}

	return r, nil
}
