// dynshape runs dynamic-shape operators on tensors stored as serialized ONNX TensorProto files.
//
// Examples:
//
//	dynshape const --dtype Int64 --out shape.pb 2 12
//	dynshape run --op reshape --out y.pb x.pb shape.pb
//	dynshape inspect x.pb y.pb
package main

import (
	"flag"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dynshape",
		Short:         "Run dynamic-shape tensor operators",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)

	rootCmd.AddCommand(newRunCmd(), newConstCmd(), newInspectCmd())
	return rootCmd
}

func main() {
	defer klog.Flush()
	if err := newRootCmd().Execute(); err != nil {
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
}
