package image

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble(t *testing.T) {
	bin := []byte{1, 2, 3, 4}
	hdr, err := BuildHeader(bin, 0xDEADBEEF, testMetadata)
	require.NoError(t, err)

	img := Assemble(hdr, bin)
	assert.Len(t, img, HeaderSize+len(bin))
	assert.Equal(t, hdr, img[:HeaderSize])
	assert.Equal(t, bin, img[HeaderSize:])

	built, err := Build(bin, 0xDEADBEEF, testMetadata)
	require.NoError(t, err)
	assert.Equal(t, img, built)
}

func TestMergeBootloader(t *testing.T) {
	bl := bytes.Repeat([]byte{0xb1}, 100)
	img := bytes.Repeat([]byte{0x1a}, 300)

	out, err := MergeBootloader(img, bl, DefaultOffset)
	require.NoError(t, err)
	require.Len(t, out, DefaultOffset+len(img))
	assert.Equal(t, bl, out[:len(bl)])
	assert.Equal(t, make([]byte, DefaultOffset-len(bl)), out[len(bl):DefaultOffset])
	assert.Equal(t, img, out[DefaultOffset:])

	// Bootloader filling the whole area leaves no gap.
	out, err = MergeBootloader(img, bl, len(bl))
	require.NoError(t, err)
	assert.Equal(t, append(bytes.Clone(bl), img...), out)

	out, err = MergeBootloader(img, nil, 16)
	require.NoError(t, err)
	assert.Equal(t, append(make([]byte, 16), img...), out)
}

func TestMergeBootloaderLayoutError(t *testing.T) {
	img := []byte{0xaa}
	for _, tt := range []struct {
		blLen, offset int
	}{
		{100, 50},
		{1, 0},
		{0x801, 0x800},
		{0, -1},
	} {
		out, err := MergeBootloader(img, make([]byte, tt.blLen), tt.offset)
		assert.ErrorIs(t, err, ErrLayout, "bootloader %d, offset %d", tt.blLen, tt.offset)
		assert.Nil(t, out)
	}
}
