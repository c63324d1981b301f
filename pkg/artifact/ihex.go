package artifact

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/marcinbor85/gohex"
)

// ihexLineLength is the number of data bytes per emitted record.
const ihexLineLength = 16

// DecodeIntelHex parses an Intel HEX file, returning the lowest address
// present and the memory contents from there on. Gaps are filled with 0xFF.
func DecodeIntelHex(r io.Reader) (uint32, []byte, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrIntelHex, err)
	}
	segments := mem.GetDataSegments()
	if len(segments) == 0 {
		return 0, nil, fmt.Errorf("%w: no data records", ErrIntelHex)
	}
	slices.SortFunc(segments, func(a, b gohex.DataSegment) int {
		return cmp.Compare(a.Address, b.Address)
	})

	base := segments[0].Address
	var end uint64
	for _, s := range segments {
		end = max(end, uint64(s.Address)+uint64(len(s.Data)))
	}
	return base, mem.ToBinary(base, uint32(end-uint64(base)), 0xff), nil
}

// EncodeIntelHex writes data as Intel HEX records loaded at base.
func EncodeIntelHex(w io.Writer, base uint32, data []byte) error {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(base, data); err != nil {
		return fmt.Errorf("could not place %d bytes at 0x%08x: %w", len(data), base, err)
	}
	if err := mem.DumpIntelHex(w, ihexLineLength); err != nil {
		return fmt.Errorf("could not write Intel HEX: %w", err)
	}
	return nil
}
