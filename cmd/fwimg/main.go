package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:   "fwimg",
	Short: "fwimg packages firmware binaries for the bootloader",
	Long: `Wraps flat firmware binaries in a checksummed header and produces update
images, combined bootloader images or UF2 files for drag and drop flashing.

Defaults for most flags can be kept in $XDG_CONFIG_HOME/fwimg/defaults.plist.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verboseLog {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	},
}

var verboseLog bool

func init() {
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)

	buildCmd.Flags().StringVarP(&buildMagic, "magic", "m", "", "Application magic, hex (required unless set in defaults)")
	buildCmd.Flags().BoolVar(&buildRaw, "raw", false, "Output the update image (header followed by the binary)")
	buildCmd.Flags().StringVar(&buildBootloader, "bl", "", "Output a combined image with the bootloader at this path")
	buildCmd.Flags().BoolVar(&buildUF2, "uf2", false, "Output the update image as UF2")
	buildCmd.Flags().BoolVar(&buildHeaderOnly, "hdr", false, "Output the header alone")
	buildCmd.MarkFlagsMutuallyExclusive("raw", "bl", "uf2", "hdr")
	buildCmd.Flags().StringVarP(&buildVersion, "version", "V", "", "Firmware version, major.minor.patch (default 0.0.0)")
	buildCmd.Flags().StringVarP(&buildOffset, "offset", "o", "", "Offset of the image in a combined bootloader image (default 0x800)")
	buildCmd.Flags().StringVarP(&buildDescription, "description", "d", "", "Free text description stored in the header")
	buildCmd.Flags().StringVarP(&buildGitHash, "git-hash", "g", "", "Git hash to store, looked up in --git-dir if not given")
	buildCmd.Flags().StringVar(&buildGitDir, "git-dir", "", "Repository to take the git hash from (default: directory of SOURCE)")
	buildCmd.MarkFlagsMutuallyExclusive("git-hash", "git-dir")
	buildCmd.Flags().IntVar(&buildChunkSize, "chunk-size", 0, "UF2 payload bytes per block (default 256)")
	buildCmd.Flags().BoolVar(&buildInfoBlock, "uf2-info-block", false, "Prepend a block carrying the CRC and length of the image to the UF2 output")
	buildCmd.Flags().StringVarP(&buildFormat, "format", "f", "bin", "Output format (one of 'bin', 'ihex')")
	buildCmd.Flags().StringVar(&buildLoadAddress, "load-address", "", "Base address of Intel HEX output (default 0x0)")
	buildCmd.Flags().StringVarP(&buildConfig, "config", "c", "", "Defaults file to use instead of the one in $XDG_CONFIG_HOME")
	inspectCmd.Flags().StringVarP(&inspectMagic, "magic", "m", "", "Verify the image against this magic, hex")
	inspectCmd.Flags().StringVarP(&inspectOffset, "offset", "o", "0", "Offset of the header in the file")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVar(&verboseLog, "verbose", false, "Enable verbose debug logging")
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(unpackCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func parseNumber(s string) (uint32, error) {
	var err error
	var res uint64
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		res, err = strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid number")
		}
	} else {
		res, err = strconv.ParseUint(s, 10, 32)
		if err != nil {
			res, err = strconv.ParseUint(s, 16, 32)
			if err != nil {
				return 0, fmt.Errorf("invalid number")
			}
		}
	}
	return uint32(res), nil
}

// parseHex parses a magic, which is always hex with or without the 0x prefix.
func parseHex(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	res, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hex number %q", s)
	}
	return uint32(res), nil
}
