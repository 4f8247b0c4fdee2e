package gdl90

import (
	"math"
	"strings"
)

// EncodeFrame appends the checksum to msg, byte-stuffs the result and wraps
// it in flag bytes.
func EncodeFrame(msg []byte) []byte {
	crc := CRC(msg)
	body := make([]byte, 0, len(msg)+2)
	body = append(body, msg...)
	body = append(body, byte(crc), byte(crc>>8))
	return stuff(body)
}

// stuff escapes flag and escape bytes in body and adds the delimiting flags.
func stuff(body []byte) []byte {
	out := make([]byte, 0, len(body)+4)
	out = append(out, FlagByte)
	for _, b := range body {
		if b == FlagByte || b == EscapeByte {
			out = append(out, EscapeByte, b^escapeXOR)
			continue
		}
		out = append(out, b)
	}
	return append(out, FlagByte)
}

// EncodeHeartbeat builds the unframed heartbeat message for h.
func EncodeHeartbeat(h Heartbeat) []byte {
	ts := h.TimestampSeconds & 0x1FFFF
	msg := make([]byte, HeartbeatLen)
	msg[0] = MessageIDHeartbeat
	msg[1] = flag(h.PositionValid, statusPositionValid) |
		flag(h.MaintenanceRequired, statusMaintenanceReq) |
		flag(h.IdentActive, statusIdent) |
		flag(h.AddressTalkback, statusAddressType) |
		flag(h.GPSBatteryLow, statusGPSBatteryLow) |
		flag(h.RATCS, statusRATCS) |
		flag(h.UATInitialized, statusUATInitialized)
	msg[2] = flag(ts&0x10000 != 0, statusTimestampMSB) |
		flag(h.CSARequested, statusCSARequested) |
		flag(h.CSANotAvailable, statusCSANotAvailable) |
		flag(h.UTCOK, statusUTCOK)
	msg[3] = byte(ts)
	msg[4] = byte(ts >> 8)
	msg[5] = (h.UplinkCount&0x1F)<<3 | byte(h.BasicLongCount>>8)&0x03
	msg[6] = byte(h.BasicLongCount)
	return msg
}

// EncodeTrafficReport builds the unframed traffic report message for r.
// Positions are rounded to the nearest wire count.
func EncodeTrafficReport(r TrafficReport) []byte {
	msg := make([]byte, TrafficReportLen)
	msg[0] = MessageIDTrafficReport
	p := msg[1:]

	p[0] = r.AlertStatus<<4 | uint8(r.AddressType)&0x0F
	putUint24(p[1:4], r.Address)
	putUint24(p[4:7], uint32(degreesToRaw(r.Latitude)))
	putUint24(p[7:10], uint32(degreesToRaw(r.Longitude)))

	alt := uint16(altitudeUnknown)
	if feet, ok := r.Altitude.Get(); ok {
		code := (int64(feet) - altitudeOffsetFt) / altitudeStepFt
		alt = uint16(min(max(code, 0), altitudeUnknown-1))
	}
	p[10] = byte(alt >> 4)
	p[11] = byte(alt<<4) | r.Misc&0x0F
	p[12] = r.NIC<<4 | r.NAC&0x0F

	hv := uint16(hVelocityUnknown)
	if kt, ok := r.HorizontalVelocity.Get(); ok {
		hv = min(kt, hVelocityUnknown-1)
	}
	vv := uint16(vVelocityUnknown)
	if fpm, ok := r.VerticalVelocity.Get(); ok {
		units := min(max(int64(fpm)/vVelocityStepFPM, -0x7FF), 0x7FF)
		vv = uint16(units) & 0x0FFF
	}
	p[13] = byte(hv >> 4)
	p[14] = byte(hv<<4) | byte(vv>>8)&0x0F
	p[15] = byte(vv)

	p[16] = byte(int(math.Round(r.Track/TrackResolution)) & 0xFF)
	p[17] = uint8(r.Emitter)

	cs := r.CallSign
	if len(cs) > CallSignLen {
		cs = cs[:CallSignLen]
	}
	copy(p[18:26], cs+strings.Repeat(" ", CallSignLen-len(cs)))
	p[26] = uint8(r.EmergencyCode) & 0x0F
	return msg
}

func degreesToRaw(deg float64) int32 {
	return int32(math.Round(deg/LatLonResolution)) & 0xFFFFFF
}
