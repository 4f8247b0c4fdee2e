package gdl90

// crcTable is the GDL90 CRC-CCITT table (generator 0x1021, MSB first).
var crcTable = func() [256]uint16 {
	var table [256]uint16
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}()

// CRC computes the GDL90 frame check sequence over data. The initial
// value is zero and no final XOR is applied.
func CRC(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = crcTable[crc>>8] ^ crc<<8 ^ uint16(b)
	}
	return crc
}
