package main

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/s0up4200/udfview/internal/blockfs"
	"github.com/s0up4200/udfview/internal/udf"
)

// globalFlags are the volume-opening options shared by every subcommand
// that touches an image, mirroring the way the report CLI this replaces
// threaded its settings.Settings through every scan entry point.
type globalFlags struct {
	noCache         bool
	correctedBlocks bool
	verbose         int
	maxADChains     int
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "udfview",
		Short:         "Inspect, extract from, and fingerprint UDF optical images",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().BoolVar(&flags.noCache, "no-cache", false, "disable the block cache")
	root.PersistentFlags().BoolVar(&flags.correctedBlocks, "corrected-blocks", false, "track allocation-descriptor offsets correctly instead of reproducing the reference AD[0] quirk")
	root.PersistentFlags().IntVarP(&flags.verbose, "verbose", "v", 0, "log verbosity (0=silent; any value above 0 prints both debug and trace lines)")
	root.PersistentFlags().IntVar(&flags.maxADChains, "max-ad-chains", udf.MaxADChains, "maximum allocation descriptors per ICB before mapping fails")

	root.AddCommand(newInspectCommand(flags))
	root.AddCommand(newExtractCommand(flags))
	root.AddCommand(newFingerprintCommand(flags))
	root.AddCommand(newVersionCommand())
	root.AddCommand(newSelfUpdateCommand())

	return root
}

// openVolume mounts path using the options accumulated on flags, wiring the
// colored logr sink to stderr when verbosity is requested.
func (f *globalFlags) openVolume(path string) (*blockfs.Volume, error) {
	opts := []udf.Option{
		udf.WithCache(!f.noCache),
		udf.WithLegacyBlockTranslation(!f.correctedBlocks),
		udf.WithMaxADChains(f.maxADChains),
	}
	if f.verbose > 0 {
		sink := udf.NewColorLogSink(os.Stderr)
		opts = append(opts, udf.WithLogger(logr.New(sink).V(0)))
	}
	return blockfs.Open(path, opts...)
}
