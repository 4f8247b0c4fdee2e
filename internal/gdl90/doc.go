// Package gdl90 implements GDL90 frame recovery and message decoding.
// It handles flag-delimited framing with byte stuffing, CRC-CCITT validation,
// and bit-exact extraction of the Heartbeat and Traffic Report messages.
package gdl90
