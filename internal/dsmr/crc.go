package dsmr

// crc16Table is the lookup table for the CRC16 used by DSMR 4 and later
// (polynomial 0xA001, initial value 0x0000). Built once at init.
var crc16Table [256]uint16

func init() {
	for i := 0; i < 256; i++ {
		crc := uint16(i)
		for bit := 0; bit < 8; bit++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
		crc16Table[i] = crc
	}
}

// Checksum computes the DSMR CRC16 over data. The telegram checksum covers
// every byte from the leading '/' up to and including the '!'.
func Checksum(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = (crc >> 8) ^ crc16Table[byte(crc)^b]
	}
	return crc
}
