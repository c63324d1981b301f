package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kajusK/fwimg/pkg/artifact"
	"github.com/kajusK/fwimg/pkg/image"
	"github.com/kajusK/fwimg/pkg/uf2"
)

var (
	inspectMagic  string
	inspectOffset string
)

// inspect prints what is known about an image, header or UF2 file to w. If
// magic is non-nil the image is also verified against it.
func inspect(w io.Writer, data []byte, offset int, magic *uint32) error {
	if len(data) >= 4 && binary.LittleEndian.Uint32(data) == uf2.MagicStart0 {
		d, err := uf2.Decode(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "UF2 stream:\n")
		d.Debug(w)
		if err := d.Verify(); err != nil {
			return err
		}
		data = d.Payload
	}

	if offset < 0 || offset > len(data) {
		return fmt.Errorf("offset 0x%x outside of %d byte file", offset, len(data))
	}
	data = data[offset:]
	hdr, err := image.ParseHeader(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Header:\n")
	hdr.Debug(w)
	if magic != nil {
		if len(data) == image.HeaderSize {
			return fmt.Errorf("header only, nothing to verify")
		}
		if _, err := image.Verify(data, *magic, 0); err != nil {
			return err
		}
		fmt.Fprintf(w, "Image OK\n")
	}
	return nil
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Show the header of an image or UF2 file",
	Long:  "Decodes the header of an update image, combined image, header file or UF2 file, and optionally verifies the image like the bootloader would.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("could not read input: %w", err)
		}
		data, err = artifact.Decode(filepath.Base(args[0]), data)
		if err != nil {
			return err
		}

		offset, err := parseNumber(inspectOffset)
		if err != nil {
			return fmt.Errorf("invalid offset")
		}
		var magic *uint32
		if inspectMagic != "" {
			m, err := parseHex(inspectMagic)
			if err != nil {
				return fmt.Errorf("invalid magic: %w", err)
			}
			magic = &m
		}

		w := cmd.OutOrStdout()
		if err := inspect(w, data, int(offset), magic); err != nil {
			return err
		}
		fmt.Fprintf(w, "     Digest: %s\n", artifact.Digest(data))
		return nil
	},
}
