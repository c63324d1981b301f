package uf2

import (
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"

	"github.com/kajusK/fwimg/pkg/crc"
)

// Decoded is the result of decoding a whole UF2 file.
type Decoded struct {
	// Payload reassembled from main flash blocks, relative to Base. Gaps
	// between blocks read as 0xFF, like erased flash.
	Payload []byte
	// Base is the target address of the first main flash block.
	Base uint32
	// Info is set if the stream carried a FramingInfo record.
	Info *Info
	// Blocks is the total number of blocks, Skipped of them not main flash.
	Blocks  int
	Skipped int
	Flags   Flags
}

// Decode parses a UF2 file. Blocks flagged FlagNotMainFlash or
// FlagFileContainer are not part of the payload, but a FlagNotMainFlash block
// holding an Info record is kept as Info. All problems found are reported
// together.
func Decode(stream []byte) (*Decoded, error) {
	if len(stream)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: file size %d is not a multiple of %d", ErrShortBlock, len(stream), BlockSize)
	}
	count := len(stream) / BlockSize
	d := &Decoded{
		Blocks:  count,
		Payload: []byte{},
	}

	var errs error
	var numBlocks uint32
	var counted bool
	var data []*Block
	for i := 0; i < count; i++ {
		b, err := ParseBlock(stream[i*BlockSize : (i+1)*BlockSize])
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("block %d: %w", i, err))
			continue
		}
		d.Flags |= b.Flags
		if !counted {
			numBlocks = b.NumBlocks
			counted = true
		} else if b.NumBlocks != numBlocks {
			errs = multierror.Append(errs, fmt.Errorf("block %d: %w: total %d, first block said %d", i, ErrSequence, b.NumBlocks, numBlocks))
		}
		if b.BlockNo != uint32(i) {
			errs = multierror.Append(errs, fmt.Errorf("block %d: %w: numbered %d", i, ErrSequence, b.BlockNo))
		}

		if b.Flags&(FlagNotMainFlash|FlagFileContainer) != 0 {
			d.Skipped++
			if b.Flags&FlagNotMainFlash != 0 && len(b.Data) == InfoSize && d.Info == nil {
				d.Info = parseInfo(b.Data)
			}
			continue
		}
		data = append(data, b)
	}
	if count > 0 && errs == nil && numBlocks != uint32(count) {
		errs = multierror.Append(errs, fmt.Errorf("%w: file has %d blocks, header says %d", ErrSequence, count, numBlocks))
	}
	if errs != nil {
		return nil, errs
	}
	if len(data) == 0 {
		return d, nil
	}

	d.Base = data[0].TargetAddr
	var size uint64
	for _, b := range data {
		if b.TargetAddr < d.Base {
			return nil, fmt.Errorf("%w: block %d targets 0x%x, below first block at 0x%x", ErrSequence, b.BlockNo, b.TargetAddr, d.Base)
		}
		size = max(size, uint64(b.TargetAddr-d.Base)+uint64(len(b.Data)))
	}
	if d.Flags&FlagFamilyIDPresent == 0 {
		if uint64(data[0].FileSize) != size {
			return nil, fmt.Errorf("%w: blocks span %d bytes, file size says %d", ErrSequence, size, data[0].FileSize)
		}
	} else if limit := uint64(len(data)) * MaxPayload; size > limit {
		return nil, fmt.Errorf("%w: blocks span %d bytes, %d blocks can't carry more than %d", ErrSequence, size, len(data), limit)
	}
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = fill
	}
	for _, b := range data {
		copy(payload[b.TargetAddr-d.Base:], b.Data)
	}
	d.Payload = payload
	return d, nil
}

// Verify checks the payload against the Info record, if there is one.
func (d *Decoded) Verify() error {
	if d.Info == nil {
		return nil
	}
	if d.Info.Length != uint32(len(d.Payload)) {
		return fmt.Errorf("%w: length %d, info says %d", ErrChecksum, len(d.Payload), d.Info.Length)
	}
	if got := crc.CRC16(d.Payload); got != d.Info.CRC {
		return fmt.Errorf("%w: CRC 0x%04x, info says 0x%04x", ErrChecksum, got, d.Info.CRC)
	}
	return nil
}

func (d *Decoded) Debug(w io.Writer) {
	fmt.Fprintf(w, "     Blocks: %d (%d not main flash)\n", d.Blocks, d.Skipped)
	fmt.Fprintf(w, "      Flags: 0x%08x\n", uint32(d.Flags))
	fmt.Fprintf(w, "       Base: 0x%08x\n", d.Base)
	fmt.Fprintf(w, "    Payload: %d bytes\n", len(d.Payload))
	if d.Info != nil {
		fmt.Fprintf(w, "   Info CRC: 0x%04x\n", d.Info.CRC)
		fmt.Fprintf(w, "Info length: %d bytes\n", d.Info.Length)
	}
}
