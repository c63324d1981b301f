package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Version
	}{
		{"1.2.3", Version{1, 2, 3}},
		{"0.0.0", Version{}},
		{"255.255.255", Version{255, 255, 255}},
		{"10.007.1", Version{10, 7, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{
		"abc",
		"1.2",
		"1.2.3.4",
		"",
		"v1.2.3",
		"1.2.3-rc1",
		" 1.2.3",
		"1.2.3\n",
		"1..3",
		"-1.2.3",
		"256.0.0",
		"1.2.99999999999999999999",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestDefault(t *testing.T) {
	assert.Equal(t, Version{0, 0, 0}, Default())
	assert.Equal(t, "0.0.0", Default().String())
}

func TestStringAndBytes(t *testing.T) {
	v := Version{Major: 1, Minor: 20, Patch: 3}
	assert.Equal(t, "1.20.3", v.String())
	assert.Equal(t, [3]byte{1, 20, 3}, v.Bytes())
}
