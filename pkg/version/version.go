// Package version handles the three part firmware version stored in the
// image header.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	ErrFormat = errors.New("version: expected major.minor.patch")

	pattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)
)

// Version is a major.minor.patch triplet. Each component is serialized as a
// single byte.
type Version struct {
	Major uint8
	Minor uint8
	Patch uint8
}

// Default returns the version used when none was given, 0.0.0.
func Default() Version {
	return Version{}
}

// Parse parses a version string such as "1.2.3". Components must be decimal
// numbers in range 0-255 and nothing else may surround them.
func Parse(s string) (Version, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("%w, got %q", ErrFormat, s)
	}
	var parts [3]uint8
	for i, p := range m[1:] {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return Version{}, fmt.Errorf("%w, component %q out of range 0-255", ErrFormat, p)
		}
		parts[i] = uint8(v)
	}
	return Version{Major: parts[0], Minor: parts[1], Patch: parts[2]}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Bytes returns the on-disk representation, major first.
func (v Version) Bytes() [3]byte {
	return [3]byte{v.Major, v.Minor, v.Patch}
}
