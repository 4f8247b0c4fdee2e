package gdl90

// Wire field helpers. All multi-byte GDL90 fields are big-endian except the
// heartbeat timestamp and the frame check sequence, which are LSB first.

// uint24 reads a 24-bit big-endian unsigned field.
func uint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// int24 reads a 24-bit big-endian two's complement field.
func int24(b []byte) int32 {
	v := int32(uint24(b))
	if v&0x800000 != 0 {
		v -= 1 << 24
	}
	return v
}

// int12 sign-extends the low 12 bits of v.
func int12(v uint16) int16 {
	v &= 0x0FFF
	if v&0x800 != 0 {
		return int16(v) - (1 << 12)
	}
	return int16(v)
}

// highNibble returns bits 7-4 of b.
func highNibble(b byte) uint8 {
	return b >> 4
}

// lowNibble returns bits 3-0 of b.
func lowNibble(b byte) uint8 {
	return b & 0x0F
}

// uint12High reads a 12-bit field occupying all of b0 and the high nibble of b1.
func uint12High(b0, b1 byte) uint16 {
	return uint16(b0)<<4 | uint16(b1>>4)
}

// uint12Low reads a 12-bit field occupying the low nibble of b0 and all of b1.
func uint12Low(b0, b1 byte) uint16 {
	return uint16(b0&0x0F)<<8 | uint16(b1)
}

// putUint24 writes the low 24 bits of v big-endian.
func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// flag returns mask when set is true.
func flag(set bool, mask byte) byte {
	if set {
		return mask
	}
	return 0
}
