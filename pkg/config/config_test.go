package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"

	"github.com/kajusK/fwimg/pkg/uf2"
)

const samplePlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Magic</key>
	<integer>3735928559</integer>
	<key>ChunkSize</key>
	<integer>128</integer>
	<key>Description</key>
	<string>tracker board</string>
	<key>UF2InfoBlock</key>
	<true/>
</dict>
</plist>
`

func TestParse(t *testing.T) {
	d, err := Parse([]byte(samplePlist))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), d.Magic)
	assert.Equal(t, 128, d.ChunkSize)
	assert.Equal(t, "tracker board", d.Description)
	assert.True(t, d.UF2InfoBlock)
	// Not in the file, built-in default kept.
	assert.Equal(t, 0x800, d.Offset)
}

func TestParseBinaryPlist(t *testing.T) {
	in := &Defaults{Magic: 0x1234, Offset: 0x1000, ChunkSize: 476, LoadAddress: 0x08000000}
	data, err := plist.Marshal(in, plist.BinaryFormat)
	require.NoError(t, err)

	d, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, in, d)
}

func TestValidateReportsAll(t *testing.T) {
	d := &Defaults{
		Offset:      -1,
		ChunkSize:   0,
		Description: strings.Repeat("x", 100),
	}
	err := d.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, uf2.ErrConfiguration)
	assert.Contains(t, err.Error(), "3 errors occurred")

	assert.NoError(t, Default().Validate())
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("not a plist"))
	assert.Error(t, err)

	_, err = Parse([]byte(strings.Replace(samplePlist, "<integer>128</integer>", "<integer>477</integer>", 1)))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.plist")
	require.NoError(t, os.WriteFile(path, []byte(samplePlist), 0600))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), d.Magic)

	_, err = Load(filepath.Join(dir, "missing.plist"))
	assert.Error(t, err)
}

func TestLoadSearchesXDG(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("XDG_CONFIG_DIRS", filepath.Join(home, "none"))
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	d, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), d)

	require.NoError(t, os.MkdirAll(filepath.Join(home, "fwimg"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "fwimg", "defaults.plist"), []byte(samplePlist), 0600))

	p, ok := Path()
	require.True(t, ok)
	assert.Equal(t, filepath.Join(home, "fwimg", "defaults.plist"), p)

	d, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 128, d.ChunkSize)
}
