package gdl90

import "fmt"

// Message is a decoded GDL90 record.
type Message interface {
	MessageID() uint8
}

type decodeFunc func(msg []byte) (Message, error)

// decoders is the dispatch table; identifiers missing here are ignored.
var decoders = map[uint8]decodeFunc{
	MessageIDHeartbeat: func(msg []byte) (Message, error) {
		hb, err := DecodeHeartbeat(msg)
		if err != nil {
			return nil, err
		}
		return hb, nil
	},
	MessageIDTrafficReport: func(msg []byte) (Message, error) {
		tr, err := DecodeTrafficReport(msg)
		if err != nil {
			return nil, err
		}
		return tr, nil
	},
}

// Supported reports whether id has a decoder.
func Supported(id uint8) bool {
	_, ok := decoders[id]
	return ok
}

// Dispatch decodes a validated frame with the decoder registered for its
// message id. Unsupported ids return an error wrapping ErrUnsupportedMessage.
func Dispatch(f Frame) (Message, error) {
	decode, ok := decoders[f.MessageID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMessage, f.MessageID)
	}
	return decode(f.Message)
}

// MessageName returns a stable label for a GDL90 message id.
func MessageName(id uint8) string {
	switch id {
	case MessageIDHeartbeat:
		return "heartbeat"
	case 2:
		return "initialization"
	case 7:
		return "uplink"
	case 9:
		return "height_above_terrain"
	case 10:
		return "ownship_report"
	case 11:
		return "ownship_geometric_altitude"
	case MessageIDTrafficReport:
		return "traffic_report"
	case 30:
		return "basic_report"
	case 31:
		return "long_report"
	default:
		return fmt.Sprintf("id_%d", id)
	}
}
