package gdl90

const (
	FlagByte   = 0x7E
	EscapeByte = 0x7D
	escapeXOR  = 0x20

	// minimum recovered length: message id plus the two checksum bytes
	minFrameLen = 3
)

// Frame is a de-stuffed, checksum-verified GDL90 message.
type Frame struct {
	MessageID uint8
	// Message holds the message id followed by its payload, without the checksum.
	Message []byte
	CRC     uint16
}

// Payload returns the message bytes following the message id.
func (f Frame) Payload() []byte {
	return f.Message[1:]
}

// DecodeFrame recovers one frame from a flag-delimited datagram. Any failure is
// returned as a *FrameError and the datagram should be discarded.
func DecodeFrame(datagram []byte) (Frame, error) {
	n := len(datagram)
	if n < 2 || datagram[0] != FlagByte || datagram[n-1] != FlagByte {
		return Frame{}, frameError(ReasonMissingFlag, ErrMissingFlag)
	}

	body, err := unstuff(datagram[1 : n-1])
	if err != nil {
		return Frame{}, err
	}
	if len(body) < minFrameLen {
		return Frame{}, frameError(ReasonTooShort, ErrFrameTooShort)
	}

	msg := body[:len(body)-2]
	sent := uint16(body[len(body)-2]) | uint16(body[len(body)-1])<<8
	if CRC(msg) != sent {
		return Frame{}, frameError(ReasonBadChecksum, ErrChecksumMismatch)
	}

	return Frame{MessageID: msg[0], Message: msg, CRC: sent}, nil
}

// unstuff removes escape sequences from a frame body. A flag byte inside the
// body means the delimiters are malformed.
func unstuff(body []byte) ([]byte, error) {
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		b := body[i]
		switch b {
		case FlagByte:
			return nil, frameError(ReasonMissingFlag, ErrMissingFlag)
		case EscapeByte:
			i++
			if i == len(body) {
				return nil, frameError(ReasonDanglingEscape, ErrDanglingEscape)
			}
			out = append(out, body[i]^escapeXOR)
		default:
			out = append(out, b)
		}
	}
	return out, nil
}

// SplitFrames cuts a datagram into flag-delimited segments. Back-to-back frames
// ("7E..7E7E..7E") are returned separately, each including its own flags.
// Bytes outside any flag pair are returned as their own segment so
// DecodeFrame reports them as malformed.
func SplitFrames(datagram []byte) [][]byte {
	var segments [][]byte
	i := 0
	for i < len(datagram) {
		if datagram[i] != FlagByte {
			// leading garbage up to the next flag
			j := i
			for j < len(datagram) && datagram[j] != FlagByte {
				j++
			}
			segments = append(segments, datagram[i:j])
			i = j
			continue
		}

		// skip repeated flags between frames
		for i+1 < len(datagram) && datagram[i+1] == FlagByte {
			i++
		}
		j := i + 1
		for j < len(datagram) && datagram[j] != FlagByte {
			j++
		}
		if j == len(datagram) {
			// no closing flag
			if j-i > 1 {
				segments = append(segments, datagram[i:j])
			}
			break
		}
		segments = append(segments, datagram[i:j+1])
		i = j + 1
	}
	return segments
}
