package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s0up4200/udfview/internal/blockfs"
)

func newInspectCommand(flags *globalFlags) *cobra.Command {
	var recursive bool
	var showAll bool

	cmd := &cobra.Command{
		Use:   "inspect <image> [path]",
		Short: "Print volume descriptors and a directory listing",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 2 {
				path = args[1]
			}

			vol, err := flags.openVolume(args[0])
			if err != nil {
				return err
			}
			defer vol.Close()

			printVolumeInfo(vol)
			fmt.Println()
			return walkAndPrint(vol, path, recursive, showAll, 0)
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subdirectories")
	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "print directories alongside files")
	return cmd
}

func printVolumeInfo(vol *blockfs.Volume) {
	r := vol.Reader()
	fmt.Printf("volume label:       %s\n", vol.VolumeLabel())
	fmt.Printf("volume identifier:  %s\n", r.VolumeIdentifier())
	fmt.Printf("volume set id:      %x\n", r.VolumeSetIdentifier())
	fmt.Printf("block size:         %d\n", r.BlockSize())
	fmt.Printf("partition start:    %d\n", r.PartitionStart())
	fmt.Printf("file set location:  %d\n", r.FileSetLocation())
	if maps := r.DebugPartitionMaps(); len(maps) > 0 {
		fmt.Println("partition maps:")
		for _, m := range maps {
			fmt.Printf("  %s\n", m)
		}
	}
}

func walkAndPrint(vol *blockfs.Volume, root string, recursive, showAll bool, depth int) error {
	entries, err := vol.ReadDir(root)
	if err != nil {
		return err
	}
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	for _, e := range entries {
		if e.IsDirectory {
			if showAll {
				fmt.Printf("%s%s/\n", indent, e.Name)
			}
			if recursive {
				if err := walkAndPrint(vol, e.FullPath, recursive, showAll, depth+1); err != nil {
					return err
				}
			}
			continue
		}
		fmt.Printf("%s%-40s %10d\n", indent, e.Name, e.Size)
	}
	return nil
}
