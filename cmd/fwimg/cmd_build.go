package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kajusK/fwimg/pkg/artifact"
	"github.com/kajusK/fwimg/pkg/config"
	"github.com/kajusK/fwimg/pkg/image"
	"github.com/kajusK/fwimg/pkg/uf2"
	"github.com/kajusK/fwimg/pkg/vcs"
	"github.com/kajusK/fwimg/pkg/version"
)

type buildMode int

const (
	modeRaw buildMode = iota
	modeBootloader
	modeUF2
	modeHeader
)

func (m buildMode) String() string {
	switch m {
	case modeRaw:
		return "image"
	case modeBootloader:
		return "combined image"
	case modeUF2:
		return "uf2"
	case modeHeader:
		return "header"
	}
	return fmt.Sprintf("buildMode(%d)", int(m))
}

// buildOptions is everything needed to turn a binary into an output artifact.
type buildOptions struct {
	mode      buildMode
	magic     uint32
	metadata  image.Metadata
	offset    int
	chunkSize int
	framing   uf2.Framing
}

// build runs the packaging pipeline on an already loaded binary.
func build(o *buildOptions, bin, bootloader []byte) ([]byte, error) {
	if o.mode == modeHeader {
		return image.BuildHeader(bin, o.magic, o.metadata)
	}
	img, err := image.Build(bin, o.magic, o.metadata)
	if err != nil {
		return nil, err
	}
	switch o.mode {
	case modeRaw:
		return img, nil
	case modeBootloader:
		return image.MergeBootloader(img, bootloader, o.offset)
	case modeUF2:
		return uf2.Encode(img, uf2.WithChunkSize(o.chunkSize), uf2.WithFraming(o.framing))
	}
	return nil, fmt.Errorf("unknown mode %v", o.mode)
}

// readInput loads a source file, flattening Intel HEX and decompressing xz and
// zstd.
func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return artifact.Decode(filepath.Base(path), data)
}

var (
	buildMagic       string
	buildRaw         bool
	buildBootloader  string
	buildUF2         bool
	buildHeaderOnly  bool
	buildVersion     string
	buildOffset      string
	buildDescription string
	buildGitHash     string
	buildGitDir      string
	buildChunkSize   int
	buildInfoBlock   bool
	buildFormat      string
	buildLoadAddress string
	buildConfig      string
)

const gitTimeout = 10 * time.Second

var buildCmd = &cobra.Command{
	Use:   "build [source] [dest]",
	Short: "Package a firmware binary",
	Long: `Wraps a firmware binary (flat, Intel HEX, optionally xz or zstd compressed) in
a 128 byte header carrying its length, CRC-16, version, git hash and
description. Exactly one of --raw, --bl, --uf2 or --hdr selects the output.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var mode buildMode
		switch {
		case buildRaw:
			mode = modeRaw
		case buildBootloader != "":
			mode = modeBootloader
		case buildUF2:
			mode = modeUF2
		case buildHeaderOnly:
			mode = modeHeader
		default:
			return fmt.Errorf("one of --raw, --bl, --uf2 or --hdr must be set")
		}

		var ihex bool
		switch strings.ToLower(buildFormat) {
		case "bin":
		case "ihex", "hex":
			ihex = true
		default:
			return fmt.Errorf("--format must be one of: bin, ihex")
		}
		if ihex && mode == modeUF2 {
			return fmt.Errorf("--format ihex can't be used with --uf2")
		}

		defaults, err := config.Load(buildConfig)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		o := buildOptions{
			mode:      mode,
			magic:     defaults.Magic,
			offset:    defaults.Offset,
			chunkSize: defaults.ChunkSize,
			framing:   uf2.FramingPlain,
			metadata: image.Metadata{
				Version:     version.Default(),
				Description: defaults.Description,
			},
		}
		if flags.Changed("magic") {
			if o.magic, err = parseHex(buildMagic); err != nil {
				return fmt.Errorf("invalid magic: %w", err)
			}
		} else if o.magic == 0 {
			return fmt.Errorf("--magic must be set")
		}
		if flags.Changed("version") {
			if o.metadata.Version, err = version.Parse(buildVersion); err != nil {
				return err
			}
		}
		if flags.Changed("offset") {
			offset, err := parseNumber(buildOffset)
			if err != nil {
				return fmt.Errorf("invalid offset")
			}
			o.offset = int(offset)
		}
		if flags.Changed("description") {
			o.metadata.Description = buildDescription
		}
		if flags.Changed("chunk-size") {
			o.chunkSize = buildChunkSize
		}
		if buildInfoBlock || defaults.UF2InfoBlock {
			o.framing = uf2.FramingInfo
		}
		loadAddress := defaults.LoadAddress
		if flags.Changed("load-address") {
			if loadAddress, err = parseNumber(buildLoadAddress); err != nil {
				return fmt.Errorf("invalid load address")
			}
		}

		var bin, bootloader []byte
		var g errgroup.Group
		g.Go(func() error {
			var err error
			bin, err = readInput(args[0])
			if err != nil {
				return fmt.Errorf("could not read input: %w", err)
			}
			return nil
		})
		if mode == modeBootloader {
			g.Go(func() error {
				var err error
				bootloader, err = readInput(buildBootloader)
				if err != nil {
					return fmt.Errorf("could not read bootloader: %w", err)
				}
				return nil
			})
		}

		o.metadata.GitHash = buildGitHash
		if o.metadata.GitHash == "" {
			dir := buildGitDir
			if dir == "" {
				dir = filepath.Dir(args[0])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), gitTimeout)
			defer cancel()
			o.metadata.GitHash, err = vcs.GitHash(ctx, dir)
			if err != nil {
				if werr := g.Wait(); werr != nil {
					return werr
				}
				return fmt.Errorf("no --git-hash given and none found: %w", err)
			}
			slog.Debug("Found git hash", "dir", dir, "hash", o.metadata.GitHash)
		}

		if err := g.Wait(); err != nil {
			return err
		}
		slog.Debug("Loaded input", "path", args[0], "size", len(bin), "digest", artifact.Digest(bin))

		out, err := build(&o, bin, bootloader)
		if err != nil {
			return fmt.Errorf("could not build %s: %w", mode, err)
		}
		if ihex {
			var buf bytes.Buffer
			if err := artifact.EncodeIntelHex(&buf, loadAddress, out); err != nil {
				return fmt.Errorf("could not encode Intel HEX: %w", err)
			}
			out = buf.Bytes()
		}

		if err := os.WriteFile(args[1], out, 0600); err != nil {
			return fmt.Errorf("could not write %s: %w", mode, err)
		}
		slog.Info("Wrote file", "kind", mode.String(), "path", args[1], "size", len(out), "digest", artifact.Digest(out))
		return nil
	},
}
