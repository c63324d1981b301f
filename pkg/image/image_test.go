package image

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kajusK/fwimg/pkg/version"
)

var testMetadata = Metadata{
	Version:     version.Version{Major: 1},
	GitHash:     "deadbeef",
	Description: "test",
}

func TestBuildHeader(t *testing.T) {
	hdr, err := BuildHeader([]byte{0x01, 0x02, 0x03, 0x04}, 0xDEADBEEF, testMetadata)
	require.NoError(t, err)
	require.Len(t, hdr, HeaderSize)

	assert.Equal(t, []byte{0xEF, 0xBE, 0xAD, 0xDE}, hdr[0:4], "magic")
	assert.Equal(t, []byte{0x04, 0x00, 0x00, 0x00}, hdr[4:8], "length")
	assert.Equal(t, []byte{0xC3, 0x89}, hdr[8:10], "crc")
	assert.Equal(t, []byte{0x01, 0x00, 0x00}, hdr[10:13], "version")

	want, _ := hex.DecodeString("efbeadde04000000c38901000064656164626565660000000000000000000000000000000000000000000000000000000000000000000000000000007465737400000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000")
	assert.Equal(t, want, hdr)
}

func TestBuildHeaderAlwaysFixedSize(t *testing.T) {
	for _, n := range []int{0, 1, 127, 128, 129, 4096, 100003} {
		hdr, err := BuildHeader(bytes.Repeat([]byte{0x5a}, n), 0x12345678, testMetadata)
		require.NoError(t, err)
		assert.Len(t, hdr, HeaderSize, "binary of %d bytes", n)
	}
}

func TestBuildHeaderFieldLimits(t *testing.T) {
	tests := []struct {
		name string
		md   Metadata
		ok   bool
	}{
		{"longest git hash", Metadata{GitHash: strings.Repeat("a", GitHashSize-1)}, true},
		{"git hash too long", Metadata{GitHash: strings.Repeat("a", GitHashSize)}, false},
		{"longest description", Metadata{GitHash: "x", Description: strings.Repeat("d", DescriptionSize-1)}, true},
		{"description too long", Metadata{GitHash: "x", Description: strings.Repeat("d", DescriptionSize)}, false},
		{"missing git hash", Metadata{Description: "no hash"}, false},
		{"non-ascii description", Metadata{GitHash: "x", Description: "naïve"}, false},
		{"embedded nul", Metadata{GitHash: "ab\x00cd"}, false},
		{"empty description", Metadata{GitHash: "0123abc-dirty"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr, err := BuildHeader([]byte{1}, 1, tt.md)
			if tt.ok {
				require.NoError(t, err)
				assert.Len(t, hdr, HeaderSize)
				return
			}
			assert.ErrorIs(t, err, ErrMetadata)
			assert.Nil(t, hdr)
		})
	}
}

func TestParseHeaderRoundTrip(t *testing.T) {
	md := Metadata{
		Version:     version.Version{Major: 2, Minor: 14, Patch: 255},
		GitHash:     strings.Repeat("f", GitHashSize-1),
		Description: strings.Repeat("D", DescriptionSize-1),
	}
	bin := []byte("some firmware")
	hdr, err := BuildHeader(bin, 0xCAFEBABE, md)
	require.NoError(t, err)

	got, err := ParseHeader(hdr)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCAFEBABE), got.Magic)
	assert.Equal(t, uint32(len(bin)), got.Length)
	assert.Equal(t, md, got.Metadata)

	_, err = ParseHeader(hdr[:HeaderSize-1])
	assert.ErrorIs(t, err, ErrShortHeader)
}

func TestVerify(t *testing.T) {
	bin := bytes.Repeat([]byte{0xa5, 0x5a, 0x00}, 100)
	img, err := Build(bin, 0xDEADBEEF, testMetadata)
	require.NoError(t, err)
	require.Len(t, img, HeaderSize+len(bin))

	hdr, err := Verify(img, 0xDEADBEEF, 0)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", hdr.GitHash)

	// Trailing data, eg. flash page padding, is not part of the image.
	_, err = Verify(append(img, 0xff, 0xff), 0xDEADBEEF, 0)
	assert.NoError(t, err)

	_, err = Verify(img, 0xDEADBEEE, 0)
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err = Verify(img, 0xDEADBEEF, uint32(len(bin)-1))
	assert.ErrorIs(t, err, ErrLength)

	_, err = Verify(img[:len(img)-1], 0xDEADBEEF, 0)
	assert.ErrorIs(t, err, ErrLength)

	corrupt := bytes.Clone(img)
	corrupt[HeaderSize+17] ^= 0x01
	_, err = Verify(corrupt, 0xDEADBEEF, 0)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestHeaderDebug(t *testing.T) {
	hdr, err := BuildHeader([]byte{1, 2, 3, 4}, 0xDEADBEEF, testMetadata)
	require.NoError(t, err)
	h, err := ParseHeader(hdr)
	require.NoError(t, err)

	var buf bytes.Buffer
	h.Debug(&buf)
	out := buf.String()
	assert.Contains(t, out, "0xdeadbeef")
	assert.Contains(t, out, "Version: 1.0.0")
	assert.Contains(t, out, "Git hash: deadbeef")
	assert.Contains(t, out, "CRC: 0x89c3")
}
