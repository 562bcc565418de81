// Package safety implements the CRC-CCITT variant used to validate the
// auxiliary OSSD status payload carried by safety-model sensors.
package safety

import "sync"

const (
	polynomial = 0x8408 // reflected form of CRC-CCITT's 0x1021
	initial    = 0x0000
)

var (
	tableOnce sync.Once
	table     [256]uint16
)

// initTable computes the 256-entry CRC table. Calc runs it once, lazily,
// through tableOnce; it is never required to call it explicitly. A
// direct call recomputes the table and writes the same values again.
func initTable() {
	for u := 0; u < 256; u++ {
		crc := uint16(u)
		for bit := 0; bit < 8; bit++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ polynomial
			} else {
				crc >>= 1
			}
		}
		table[u] = crc
	}
}

// Calc computes the 16-bit reflected CRC-CCITT (poly 0x8408, init
// 0x0000, no final XOR) of data. Calc("123456789") == 0x906E.
func Calc(data []byte) uint16 {
	tableOnce.Do(initTable)

	crc := uint16(initial)
	for _, b := range data {
		crc = (crc >> 8) ^ table[(crc^uint16(b))&0xff]
	}
	return crc
}
