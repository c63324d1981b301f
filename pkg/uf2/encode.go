package uf2

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kajusK/fwimg/pkg/crc"
)

// Framing selects how a payload is laid out into blocks. Bootloaders expect
// exactly one of these, they are not interchangeable.
type Framing int

const (
	// FramingPlain emits data blocks only, numbered from 0, with no flags
	// set.
	FramingPlain Framing = iota
	// FramingInfo prepends a FlagNotMainFlash block carrying an Info record
	// with the CRC and length of the payload. Data blocks are numbered from
	// 1.
	FramingInfo
)

func (f Framing) String() string {
	switch f {
	case FramingPlain:
		return "plain"
	case FramingInfo:
		return "info"
	}
	return "UNKNOWN"
}

// InfoSize is the size of the record carried by the FramingInfo first block.
const InfoSize = 6

// Info is the payload of the first block in FramingInfo streams.
type Info struct {
	CRC    uint16
	Length uint32
}

func (i *Info) marshal() []byte {
	b := make([]byte, InfoSize)
	binary.LittleEndian.PutUint16(b[0:], i.CRC)
	binary.LittleEndian.PutUint32(b[2:], i.Length)
	return b
}

func parseInfo(b []byte) *Info {
	return &Info{
		CRC:    binary.LittleEndian.Uint16(b[0:]),
		Length: binary.LittleEndian.Uint32(b[2:]),
	}
}

type config struct {
	chunkSize int
	framing   Framing
}

func defaultConfig() config {
	return config{
		chunkSize: DefaultChunkSize,
		framing:   FramingPlain,
	}
}

// Option configures the encoder.
type Option func(*config)

// WithChunkSize sets the payload size of each block, 1 to MaxPayload bytes.
func WithChunkSize(n int) Option {
	return func(c *config) {
		c.chunkSize = n
	}
}

// WithFraming selects the block layout, FramingPlain by default.
func WithFraming(f Framing) Option {
	return func(c *config) {
		c.framing = f
	}
}

// CheckChunkSize returns ErrConfiguration if n can't be used as a chunk size.
func CheckChunkSize(n int) error {
	if n < 1 || n > MaxPayload {
		return fmt.Errorf("%w: chunk size %d is not within 1 and %d", ErrConfiguration, n, MaxPayload)
	}
	return nil
}

// EncodeBlocks splits payload into UF2 blocks.
//
// An empty payload yields no blocks with FramingPlain, and only the info
// block with FramingInfo.
func EncodeBlocks(payload []byte, opts ...Option) ([][]byte, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if err := CheckChunkSize(cfg.chunkSize); err != nil {
		return nil, err
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrConfiguration, len(payload))
	}

	var first uint32
	var blocks []*Block
	n := NumBlocks(len(payload), cfg.chunkSize)
	total := uint32(n)
	fileSize := uint32(len(payload))

	switch cfg.framing {
	case FramingPlain:
	case FramingInfo:
		first = 1
		total += 1
		info := Info{
			CRC:    crc.CRC16(payload),
			Length: fileSize,
		}
		blocks = append(blocks, &Block{
			Flags:     FlagNotMainFlash,
			BlockNo:   0,
			NumBlocks: total,
			FileSize:  fileSize,
			Data:      info.marshal(),
		})
	default:
		return nil, fmt.Errorf("%w: unknown framing %d", ErrConfiguration, cfg.framing)
	}

	for i := 0; i < n; i++ {
		start := i * cfg.chunkSize
		end := min(start+cfg.chunkSize, len(payload))
		blocks = append(blocks, &Block{
			TargetAddr: uint32(start),
			BlockNo:    first + uint32(i),
			NumBlocks:  total,
			FileSize:   fileSize,
			Data:       payload[start:end],
		})
	}

	res := make([][]byte, 0, len(blocks))
	for _, b := range blocks {
		data, err := b.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", b.BlockNo, err)
		}
		res = append(res, data)
	}
	return res, nil
}

// Encode returns payload as a UF2 file, the concatenation of EncodeBlocks.
func Encode(payload []byte, opts ...Option) ([]byte, error) {
	blocks, err := EncodeBlocks(payload, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(blocks)*BlockSize)
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out, nil
}
