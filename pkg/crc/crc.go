// Package crc implements the CRC-16/CCITT-FALSE checksum used by the
// bootloader to validate firmware images.
//
// Parameters: polynomial 0x1021 (0x11021 in augmented form), no input or
// output reflection, initial value 0xFFFF, no final XOR. The check value of
// "123456789" is 0x29B1.
package crc

import (
	"hash"
)

const (
	// CCITT is the generator polynomial, without the implicit x^16 term.
	CCITT = 0x1021

	// Initial is the register value before any data is processed.
	Initial = 0xFFFF

	// Size of a CRC-16 checksum in bytes.
	Size = 2
)

// Table is a 256-entry lookup table for a non-reflected 16 bit CRC.
type Table [256]uint16

// MakeTable builds the lookup table for the given polynomial.
func MakeTable(poly uint16) *Table {
	t := new(Table)
	for i := 0; i < 256; i++ {
		rem := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if rem&0x8000 != 0 {
				rem = (rem << 1) ^ poly
			} else {
				rem <<= 1
			}
		}
		t[i] = rem
	}
	return t
}

var ccittTable = MakeTable(CCITT)

// Update returns the result of adding the bytes in data to crc.
func Update(crc uint16, data []byte) uint16 {
	return UpdateTable(crc, ccittTable, data)
}

// UpdateTable is Update with an explicit lookup table.
func UpdateTable(crc uint16, tab *Table, data []byte) uint16 {
	for _, b := range data {
		crc = (crc << 8) ^ tab[byte(crc>>8)^b]
	}
	return crc
}

// CRC16 returns the CRC-16/CCITT-FALSE checksum of data.
func CRC16(data []byte) uint16 {
	return Update(Initial, data)
}

// CRC16Bitwise computes the same checksum as CRC16 one bit at a time,
// without a lookup table.
func CRC16Bitwise(data []byte) uint16 {
	var crc uint16 = Initial
	for _, b := range data {
		crc ^= uint16(b) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ CCITT
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Hash16 is the common interface implemented by 16 bit checksums.
type Hash16 interface {
	hash.Hash
	Sum16() uint16
}

type digest struct {
	crc uint16
}

// New creates a new Hash16 computing the CRC-16/CCITT-FALSE checksum. Its Sum
// method lays the value out in big-endian byte order.
func New() Hash16 {
	return &digest{crc: Initial}
}

func (d *digest) Size() int      { return Size }
func (d *digest) BlockSize() int { return 1 }
func (d *digest) Reset()         { d.crc = Initial }

func (d *digest) Write(p []byte) (int, error) {
	d.crc = Update(d.crc, p)
	return len(p), nil
}

func (d *digest) Sum16() uint16 { return d.crc }

func (d *digest) Sum(in []byte) []byte {
	return append(in, byte(d.crc>>8), byte(d.crc))
}
