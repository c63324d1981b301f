package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kajusK/fwimg/pkg/artifact"
	"github.com/kajusK/fwimg/pkg/uf2"
)

var unpackCmd = &cobra.Command{
	Use:   "unpack [input] [output]",
	Short: "Extract the image from a UF2 file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("could not read input: %w", err)
		}
		d, err := uf2.Decode(data)
		if err != nil {
			return fmt.Errorf("could not decode UF2: %w", err)
		}
		if err := d.Verify(); err != nil {
			return err
		}
		slog.Debug("Decoded UF2", "blocks", d.Blocks, "base", fmt.Sprintf("0x%08x", d.Base))

		if err := os.WriteFile(args[1], d.Payload, 0600); err != nil {
			return fmt.Errorf("could not write image: %w", err)
		}
		slog.Info("Wrote file", "kind", "image", "path", args[1], "size", len(d.Payload), "digest", artifact.Digest(d.Payload))
		return nil
	},
}
