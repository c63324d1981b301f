// Package artifact converts firmware files as produced by toolchains and
// build systems to and from the flat binaries the image pipeline works on.
//
// Inputs may be raw binaries, Intel HEX files, or either of those compressed
// with xz or zstd.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/golang/glog"
	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"
	"github.com/ulikunitz/xz"
)

type Format int

const (
	FormatBinary Format = iota
	FormatIntelHex
	FormatXZ
	FormatZstd
)

func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatIntelHex:
		return "ihex"
	case FormatXZ:
		return "xz"
	case FormatZstd:
		return "zstd"
	}
	return "UNKNOWN"
}

var (
	ErrIntelHex = errors.New("artifact: invalid Intel HEX")
	ErrFormat   = errors.New("artifact: unknown format")

	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

	hexRecord = regexp.MustCompile(`^:[0-9A-Fa-f]{10,}\r?$`)
)

// Detect guesses the format of data. Compression is recognized by magic,
// Intel HEX by file extension or by a valid first record.
func Detect(name string, data []byte) Format {
	switch {
	case bytes.HasPrefix(data, xzMagic):
		return FormatXZ
	case bytes.HasPrefix(data, zstdMagic):
		return FormatZstd
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".hex", ".ihex", ".ihx":
		return FormatIntelHex
	}
	line, _, _ := bytes.Cut(data, []byte("\n"))
	if hexRecord.Match(line) {
		return FormatIntelHex
	}
	return FormatBinary
}

// Decode returns the flat binary contained in data. name is only used as a
// format hint. Intel HEX contents are flattened starting at their lowest
// address, gaps filled with 0xFF.
func Decode(name string, data []byte) ([]byte, error) {
	format := Detect(name, data)
	glog.V(1).Infof("Input %s detected as %s (%d bytes)", name, format, len(data))

	switch format {
	case FormatBinary:
		return data, nil
	case FormatIntelHex:
		_, bin, err := DecodeIntelHex(bytes.NewReader(data))
		return bin, err
	case FormatXZ:
		r, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("could not open xz stream: %w", err)
		}
		plain, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("could not decompress xz: %w", err)
		}
		return Decode(strings.TrimSuffix(name, filepath.Ext(name)), plain)
	case FormatZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("could not create zstd decoder: %w", err)
		}
		defer dec.Close()
		plain, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("could not decompress zstd: %w", err)
		}
		return Decode(strings.TrimSuffix(name, filepath.Ext(name)), plain)
	}
	return nil, fmt.Errorf("%w: %d", ErrFormat, format)
}

// Digest returns the content digest of an output artifact.
func Digest(data []byte) digest.Digest {
	return digest.FromBytes(data)
}
