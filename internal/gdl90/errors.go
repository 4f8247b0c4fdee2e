package gdl90

import (
	"errors"
	"fmt"
)

var (
	ErrMissingFlag        = errors.New("frame not delimited by flag bytes")
	ErrDanglingEscape     = errors.New("escape byte without follower")
	ErrFrameTooShort      = errors.New("frame shorter than message id plus checksum")
	ErrChecksumMismatch   = errors.New("frame checksum mismatch")
	ErrLengthMismatch     = errors.New("message length mismatch")
	ErrUnsupportedMessage = errors.New("unsupported message id")
)

// DiscardReason labels why a frame was dropped. The values double as
// metric label values.
type DiscardReason string

const (
	ReasonMissingFlag    DiscardReason = "missing_flag"
	ReasonDanglingEscape DiscardReason = "dangling_escape"
	ReasonTooShort       DiscardReason = "too_short"
	ReasonBadChecksum    DiscardReason = "bad_checksum"
)

// FrameError reports a datagram that did not yield a valid frame.
type FrameError struct {
	Reason DiscardReason
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("gdl90 frame discarded (%s): %v", e.Reason, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

func frameError(reason DiscardReason, err error) *FrameError {
	return &FrameError{Reason: reason, Err: err}
}

// DecodeError reports a validated frame whose message could not be decoded.
type DecodeError struct {
	MessageID uint8
	Want      int
	Got       int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("gdl90 message %d: expected %d bytes, got %d", e.MessageID, e.Want, e.Got)
}

func (e *DecodeError) Unwrap() error { return ErrLengthMismatch }
