// Package image builds and checks the firmware header that the bootloader
// expects in front of an application binary.
//
// The header is always HeaderSize (0x80) bytes, which keeps the application
// vector table aligned for VTOR relocation. All multi-byte fields are little
// endian:
//
//	0x00  u32   magic
//	0x04  u32   length of the wrapped binary
//	0x08  u16   CRC-16/CCITT-FALSE of the wrapped binary
//	0x0a  u8[3] version major, minor, patch
//	0x0d  [47]  git hash, ASCII, NUL padded
//	0x3c  [68]  description, ASCII, NUL padded
package image

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/kajusK/fwimg/pkg/crc"
	"github.com/kajusK/fwimg/pkg/version"
)

const (
	// HeaderSize is the size of the header in front of the application.
	HeaderSize = 0x80

	// GitHashSize is the width of the git hash field, including the
	// terminating NUL.
	GitHashSize = 47
	// DescriptionSize is the width of the description field, including the
	// terminating NUL.
	DescriptionSize = 68

	offMagic       = 0x00
	offLength      = 0x04
	offCRC         = 0x08
	offVersion     = 0x0a
	offGitHash     = 0x0d
	offDescription = offGitHash + GitHashSize
	headerUsed     = offDescription + DescriptionSize
)

var (
	ErrMetadata    = errors.New("image: invalid metadata")
	ErrOverflow    = errors.New("image: header does not fit")
	ErrLayout      = errors.New("image: bootloader does not fit below image offset")
	ErrShortHeader = errors.New("image: truncated header")
	ErrBadMagic    = errors.New("image: magic mismatch")
	ErrLength      = errors.New("image: invalid length")
	ErrChecksum    = errors.New("image: CRC mismatch")
)

// Metadata is the descriptive part of the header.
type Metadata struct {
	Version version.Version
	// GitHash identifies the source revision, usually a short hash with an
	// optional -dirty suffix. It must not be empty.
	GitHash     string
	Description string
}

func (m *Metadata) validate() error {
	if m.GitHash == "" {
		return fmt.Errorf("%w: git hash unavailable", ErrMetadata)
	}
	if err := checkField("git hash", m.GitHash, GitHashSize); err != nil {
		return err
	}
	return checkField("description", m.Description, DescriptionSize)
}

func checkField(name, s string, width int) error {
	if len(s) >= width {
		return fmt.Errorf("%w: %s is %d bytes long, at most %d allowed", ErrMetadata, name, len(s), width-1)
	}
	for i := 0; i < len(s); i++ {
		if s[i] == 0 || s[i] > 0x7f {
			return fmt.Errorf("%w: %s contains non-ASCII byte 0x%02x at %d", ErrMetadata, name, s[i], i)
		}
	}
	return nil
}

// BuildHeader returns the header describing binary.
func BuildHeader(bin []byte, magic uint32, md Metadata) ([]byte, error) {
	if headerUsed > HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes of fields in a %d byte header", ErrOverflow, headerUsed, HeaderSize)
	}
	if uint64(len(bin)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: binary is %d bytes long", ErrOverflow, len(bin))
	}
	if err := md.validate(); err != nil {
		return nil, err
	}

	hdr := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(hdr[offMagic:], magic)
	binary.LittleEndian.PutUint32(hdr[offLength:], uint32(len(bin)))
	binary.LittleEndian.PutUint16(hdr[offCRC:], crc.CRC16(bin))
	v := md.Version.Bytes()
	copy(hdr[offVersion:offGitHash], v[:])
	copy(hdr[offGitHash:offDescription], md.GitHash)
	copy(hdr[offDescription:headerUsed], md.Description)
	return hdr, nil
}

// Header is a parsed firmware header.
type Header struct {
	Magic  uint32
	Length uint32
	CRC    uint16
	Metadata
}

// ParseHeader decodes the first HeaderSize bytes of b. No validation besides
// the size is done, see Verify.
func ParseHeader(b []byte) (*Header, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrShortHeader, len(b), HeaderSize)
	}
	return &Header{
		Magic:  binary.LittleEndian.Uint32(b[offMagic:]),
		Length: binary.LittleEndian.Uint32(b[offLength:]),
		CRC:    binary.LittleEndian.Uint16(b[offCRC:]),
		Metadata: Metadata{
			Version: version.Version{
				Major: b[offVersion],
				Minor: b[offVersion+1],
				Patch: b[offVersion+2],
			},
			GitHash:     string(bytes.TrimRight(b[offGitHash:offDescription], "\x00")),
			Description: string(bytes.TrimRight(b[offDescription:headerUsed], "\x00")),
		},
	}, nil
}

// Verify checks img (header followed by the binary) the same way the
// bootloader does before jumping to it: the magic must match, the length
// must fit both maxLen (if non-zero) and the data present, and the CRC of the
// binary must match the header.
func Verify(img []byte, magic uint32, maxLen uint32) (*Header, error) {
	hdr, err := ParseHeader(img)
	if err != nil {
		return nil, err
	}
	if hdr.Magic != magic {
		return hdr, fmt.Errorf("%w: got 0x%08x, want 0x%08x", ErrBadMagic, hdr.Magic, magic)
	}
	if maxLen != 0 && hdr.Length > maxLen {
		return hdr, fmt.Errorf("%w: %d bytes exceeds image area of %d", ErrLength, hdr.Length, maxLen)
	}
	if uint64(hdr.Length) > uint64(len(img)-HeaderSize) {
		return hdr, fmt.Errorf("%w: header says %d bytes, only %d present", ErrLength, hdr.Length, len(img)-HeaderSize)
	}
	body := img[HeaderSize : HeaderSize+int(hdr.Length)]
	if got := crc.CRC16(body); got != hdr.CRC {
		return hdr, fmt.Errorf("%w: computed 0x%04x, header has 0x%04x", ErrChecksum, got, hdr.CRC)
	}
	return hdr, nil
}

func (h *Header) Debug(w io.Writer) {
	var m [4]byte
	binary.LittleEndian.PutUint32(m[:], h.Magic)
	fmt.Fprintf(w, "      Magic: 0x%08x (%s)\n", h.Magic, hex.EncodeToString(m[:]))
	fmt.Fprintf(w, "     Length: %d bytes\n", h.Length)
	fmt.Fprintf(w, "        CRC: 0x%04x\n", h.CRC)
	fmt.Fprintf(w, "    Version: %s\n", h.Version)
	fmt.Fprintf(w, "   Git hash: %s\n", h.GitHash)
	fmt.Fprintf(w, "Description: %s\n", h.Description)
}
