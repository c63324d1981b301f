// Package uf2 implements encoding and decoding of UF2 firmware files, used to
// update devices by copying a file onto a USB mass storage volume.
//
// Reference: https://github.com/microsoft/uf2
//
// A UF2 file is a sequence of independent 512 byte blocks, all fields little
// endian:
//
//	0x000  u32  first magic, 0x0A324655
//	0x004  u32  second magic, 0x9E5D5157
//	0x008  u32  flags
//	0x00c  u32  target address
//	0x010  u32  payload size of this block
//	0x014  u32  block number
//	0x018  u32  total number of blocks
//	0x01c  u32  file size (or family ID)
//	0x020  [476] payload, unused tail filled with 0xFF
//	0x1fc  u32  final magic, 0x0AB16F30
package uf2

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

const (
	MagicStart0 = 0x0A324655
	MagicStart1 = 0x9E5D5157
	MagicEnd    = 0x0AB16F30

	// BlockSize is the size of a single UF2 block.
	BlockSize = 512
	// MaxPayload is the largest payload a single block can carry.
	MaxPayload = 476
	// DefaultChunkSize is the payload carried by every block but the last.
	DefaultChunkSize = 256

	offMagicStart0 = 0x000
	offMagicStart1 = 0x004
	offFlags       = 0x008
	offTargetAddr  = 0x00c
	offPayloadSize = 0x010
	offBlockNo     = 0x014
	offNumBlocks   = 0x018
	offFileSize    = 0x01c
	offData        = 0x020
	offMagicEnd    = 0x1fc

	fill = 0xff
)

// Flags is the bit field stored in every block.
type Flags uint32

const (
	// FlagNotMainFlash marks blocks that are not to be written to main flash,
	// eg. metadata.
	FlagNotMainFlash Flags = 0x00000001
	// FlagFileContainer marks blocks that are part of a file container.
	FlagFileContainer Flags = 0x00001000
	// FlagFamilyIDPresent means the file size field holds a family ID.
	FlagFamilyIDPresent Flags = 0x00002000
	// FlagMD5Checksum means the block carries an MD5 checksum of its range.
	FlagMD5Checksum Flags = 0x00004000
)

var (
	ErrConfiguration = errors.New("uf2: invalid configuration")
	ErrShortBlock    = errors.New("uf2: truncated block")
	ErrBadMagic      = errors.New("uf2: bad magic")
	ErrPayloadSize   = errors.New("uf2: payload size out of range")
	ErrSequence      = errors.New("uf2: inconsistent block sequence")
	ErrChecksum      = errors.New("uf2: payload does not match info block")
)

// Block is a single decoded UF2 block.
type Block struct {
	Flags      Flags
	TargetAddr uint32
	BlockNo    uint32
	NumBlocks  uint32
	// FileSize is the total payload size, or the family ID if
	// FlagFamilyIDPresent is set.
	FileSize uint32
	// Data is the payload, its length is stored as the payload size.
	Data []byte
}

// MarshalBinary lays the block out in its 512 byte on-disk format.
func (b *Block) MarshalBinary() ([]byte, error) {
	if len(b.Data) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadSize, len(b.Data))
	}
	out := make([]byte, BlockSize)
	binary.LittleEndian.PutUint32(out[offMagicStart0:], MagicStart0)
	binary.LittleEndian.PutUint32(out[offMagicStart1:], MagicStart1)
	binary.LittleEndian.PutUint32(out[offFlags:], uint32(b.Flags))
	binary.LittleEndian.PutUint32(out[offTargetAddr:], b.TargetAddr)
	binary.LittleEndian.PutUint32(out[offPayloadSize:], uint32(len(b.Data)))
	binary.LittleEndian.PutUint32(out[offBlockNo:], b.BlockNo)
	binary.LittleEndian.PutUint32(out[offNumBlocks:], b.NumBlocks)
	binary.LittleEndian.PutUint32(out[offFileSize:], b.FileSize)
	n := copy(out[offData:offMagicEnd], b.Data)
	for i := offData + n; i < offMagicEnd; i++ {
		out[i] = fill
	}
	binary.LittleEndian.PutUint32(out[offMagicEnd:], MagicEnd)
	return out, nil
}

// ParseBlock decodes and validates a single block.
func ParseBlock(data []byte) (*Block, error) {
	if len(data) < BlockSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortBlock, len(data))
	}
	m0 := binary.LittleEndian.Uint32(data[offMagicStart0:])
	m1 := binary.LittleEndian.Uint32(data[offMagicStart1:])
	me := binary.LittleEndian.Uint32(data[offMagicEnd:])
	if m0 != MagicStart0 || m1 != MagicStart1 || me != MagicEnd {
		return nil, fmt.Errorf("%w: %08x %08x ... %08x", ErrBadMagic, m0, m1, me)
	}
	size := binary.LittleEndian.Uint32(data[offPayloadSize:])
	if size > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadSize, size)
	}
	payload := make([]byte, size)
	copy(payload, data[offData:offData+int(size)])
	return &Block{
		Flags:      Flags(binary.LittleEndian.Uint32(data[offFlags:])),
		TargetAddr: binary.LittleEndian.Uint32(data[offTargetAddr:]),
		BlockNo:    binary.LittleEndian.Uint32(data[offBlockNo:]),
		NumBlocks:  binary.LittleEndian.Uint32(data[offNumBlocks:]),
		FileSize:   binary.LittleEndian.Uint32(data[offFileSize:]),
		Data:       payload,
	}, nil
}

func ceilDiv[T constraints.Integer](a, b T) T {
	return (a + b - 1) / b
}

// NumBlocks returns how many data blocks a payload of the given size is split
// into.
func NumBlocks(payloadLen, chunkSize int) int {
	return ceilDiv(payloadLen, chunkSize)
}

// StreamSize returns the size in bytes of a plainly framed UF2 file carrying
// payloadLen bytes.
func StreamSize(payloadLen, chunkSize int) int {
	return NumBlocks(payloadLen, chunkSize) * BlockSize
}
