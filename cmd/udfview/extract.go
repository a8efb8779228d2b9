package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// newExtractCommand is the Go form of udf_extract.c: open one file inside
// the image by path and copy its full content out. The reference tool reads
// the whole file into a VLA sized by DVDFileSize64 before writing it in one
// fwrite; io.Copy streams instead, since Go has no reason to buffer the
// entire file in memory first.
func newExtractCommand(flags *globalFlags) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "extract <image> <path>",
		Short: "Extract a single file from the image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vol, err := flags.openVolume(args[0])
			if err != nil {
				return err
			}
			defer vol.Close()

			entry, err := vol.Stat(args[1])
			if err != nil {
				return err
			}
			if entry.IsDirectory {
				return fmt.Errorf("%s is a directory", args[1])
			}

			src, err := vol.OpenFile(entry)
			if err != nil {
				return err
			}
			defer src.Close()

			out := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			n, err := io.Copy(out, src)
			if err != nil {
				return fmt.Errorf("extracting %s: %w", args[1], err)
			}
			if n != entry.Size {
				return fmt.Errorf("extracted %d bytes, expected %d", n, entry.Size)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default: stdout)")
	return cmd
}
