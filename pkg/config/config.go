// Package config loads per-user build defaults for fwimg.
//
// Defaults are kept in a property list (XML or binary) at
// $XDG_CONFIG_HOME/fwimg/defaults.plist, for example:
//
//	<plist version="1.0">
//	<dict>
//	    <key>Magic</key>        <integer>3735928559</integer>
//	    <key>Offset</key>       <integer>2048</integer>
//	    <key>ChunkSize</key>    <integer>256</integer>
//	    <key>Description</key>  <string>tracker board rev B</string>
//	</dict>
//	</plist>
//
// Command line flags take precedence over anything set here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"
	"howett.net/plist"

	"github.com/kajusK/fwimg/pkg/image"
	"github.com/kajusK/fwimg/pkg/uf2"
)

var ErrInvalid = errors.New("config: invalid value")

// Defaults are the values used for flags not given on the command line.
type Defaults struct {
	// Magic identifying the application, zero if unset.
	Magic uint32 `plist:"Magic"`
	// Offset of the image in a combined bootloader image.
	Offset int `plist:"Offset"`
	// ChunkSize is the UF2 payload size per block.
	ChunkSize int `plist:"ChunkSize"`
	// UF2InfoBlock selects uf2.FramingInfo.
	UF2InfoBlock bool   `plist:"UF2InfoBlock"`
	Description  string `plist:"Description"`
	// LoadAddress is the base address for Intel HEX output.
	LoadAddress uint32 `plist:"LoadAddress"`
}

// Default returns the built-in defaults.
func Default() *Defaults {
	return &Defaults{
		Offset:    image.DefaultOffset,
		ChunkSize: uf2.DefaultChunkSize,
	}
}

// Path returns the path of the user's defaults file, if there is one.
func Path() (string, bool) {
	p, err := xdg.SearchConfigFile(filepath.Join("fwimg", "defaults.plist"))
	if err != nil {
		return "", false
	}
	return p, true
}

// Load reads defaults from path. If path is empty, the XDG config directories
// are searched and built-in defaults are used if nothing is found.
func Load(path string) (*Defaults, error) {
	if path == "" {
		p, ok := Path()
		if !ok {
			glog.V(1).Infof("No defaults file found, using built-in defaults")
			return Default(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read defaults: %w", err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	glog.Infof("Using defaults from %s", path)
	return d, nil
}

// Parse decodes a defaults property list on top of the built-in defaults and
// validates the result.
func Parse(data []byte) (*Defaults, error) {
	d := Default()
	if _, err := plist.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("could not parse property list: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate reports every invalid value at once.
func (d *Defaults) Validate() error {
	var errs error
	if err := uf2.CheckChunkSize(d.ChunkSize); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("%w: ChunkSize: %w", ErrInvalid, err))
	}
	if d.Offset < 0 {
		errs = multierror.Append(errs, fmt.Errorf("%w: Offset %d is negative", ErrInvalid, d.Offset))
	}
	if len(d.Description) >= image.DescriptionSize {
		errs = multierror.Append(errs, fmt.Errorf("%w: Description longer than %d bytes", ErrInvalid, image.DescriptionSize-1))
	}
	return errs
}
