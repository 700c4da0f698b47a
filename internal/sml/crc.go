package sml

// crcPolynomial is the CCITT polynomial in reflected form.
const crcPolynomial = 0x8408

// crcTable is the lookup table for byte-wise checksum calculation.
//
//nolint:gochecknoglobals // Precomputed once at startup.
var crcTable = makeCRCTable()

func makeCRCTable() [256]uint16 {
	var table [256]uint16

	for b := range table {
		crc := uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x01 != 0 {
				crc = (crc >> 1) ^ crcPolynomial
			} else {
				crc >>= 1
			}
		}

		table[b] = crc
	}

	return table
}

// Checksum calculates the CCITT-CRC16 of data as used by the SML transport
// layer (init 0xFFFF, reflected polynomial 0x8408, final complement).
func Checksum(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		idx := b ^ byte(crc)
		crc = crcTable[idx] ^ (crc >> 8)
	}

	return crc ^ 0xFFFF
}
