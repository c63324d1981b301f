package image

import (
	"fmt"
)

// DefaultOffset is where the bootloader expects the image header in a
// combined flash image.
const DefaultOffset = 0x800

// Assemble concatenates a header and the binary it describes.
func Assemble(header, bin []byte) []byte {
	img := make([]byte, 0, len(header)+len(bin))
	img = append(img, header...)
	return append(img, bin...)
}

// Build wraps bin in a header, returning a flashable update image.
func Build(bin []byte, magic uint32, md Metadata) ([]byte, error) {
	hdr, err := BuildHeader(bin, magic, md)
	if err != nil {
		return nil, err
	}
	return Assemble(hdr, bin), nil
}

// MergeBootloader places img at offset behind the bootloader. The gap between
// the end of the bootloader and offset is zero filled. The bootloader is never
// truncated, ErrLayout is returned if it doesn't fit.
func MergeBootloader(img, bootloader []byte, offset int) ([]byte, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: negative offset %d", ErrLayout, offset)
	}
	if len(bootloader) > offset {
		return nil, fmt.Errorf("%w: bootloader is %d bytes, image starts at 0x%x", ErrLayout, len(bootloader), offset)
	}
	out := make([]byte, offset+len(img))
	copy(out, bootloader)
	copy(out[offset:], img)
	return out, nil
}
