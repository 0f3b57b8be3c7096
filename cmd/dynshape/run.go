package main

import (
	"fmt"
	"strconv"

	"github.com/gomlx/dynshape/dynops"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// parseDType accepts the dtype names of GoMLX, in any case, and the empty string for "not given".
func parseDType(name string) (dtypes.DType, error) {
	if name == "" {
		return dtypes.InvalidDType, nil
	}
	dtype, found := dtypes.MapOfNames[name]
	if !found || dtype == dtypes.InvalidDType {
		return dtypes.InvalidDType, errors.Errorf("unknown dtype %q", name)
	}
	return dtype, nil
}

func newRunCmd() *cobra.Command {
	var opName, dtypeName, outPath string
	cmd := &cobra.Command{
		Use:   "run --op <operator> --out <file> <input files...>",
		Short: "Execute an operator on the tensors in the input files and write the output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := dynops.ParseKind(opName)
			if err != nil {
				return err
			}
			dtype, err := parseDType(dtypeName)
			if err != nil {
				return err
			}
			inputs := make([]*tensors.Tensor, len(args))
			for ii, path := range args {
				_, inputs[ii], err = dynops.ReadTensorFile(path)
				if err != nil {
					return err
				}
			}
			op := dynops.Op{Kind: kind, DType: dtype}
			output, err := dynops.Execute(op, inputs...)
			if err != nil {
				return err
			}
			if err = dynops.WriteTensorFile(outPath, op.String(), output); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", op, output.Shape())
			return err
		},
	}
	cmd.Flags().StringVar(&opName, "op", "", fmt.Sprintf("Operator, one of %v", dynops.Kinds()))
	cmd.Flags().StringVar(&dtypeName, "dtype", "", "Output dtype, required for zeros and ones")
	cmd.Flags().StringVar(&outPath, "out", "", "File to write the output tensor to")
	_ = cmd.MarkFlagRequired("op")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newConstCmd() *cobra.Command {
	var dtypeName, outPath, name string
	var dims []int
	cmd := &cobra.Command{
		Use:   "const --dtype <dtype> --out <file> <values...>",
		Short: "Write a tensor with the given values",
		RunE: func(cmd *cobra.Command, args []string) error {
			dtype, err := parseDType(dtypeName)
			if err != nil {
				return err
			}
			if dtype == dtypes.InvalidDType {
				dtype = dtypes.Float64
			}
			values := make([]float64, len(args))
			for ii, arg := range args {
				values[ii], err = strconv.ParseFloat(arg, 64)
				if err != nil {
					return errors.Wrapf(err, "value #%d", ii)
				}
			}
			if !cmd.Flags().Changed("dims") && len(values) != 1 {
				dims = []int{len(values)}
			}
			if _, err = dynops.ResolveFill(dims); err != nil {
				return err
			}
			if dynops.Size(dims) != len(values) {
				return errors.Errorf("%d values given for dimensions %v", len(values), dims)
			}
			t, err := dynops.CastTensor(tensors.FromFlatDataAndDimensions(values, dims...), dtype)
			if err != nil {
				return err
			}
			return dynops.WriteTensorFile(outPath, name, t)
		},
	}
	cmd.Flags().StringVar(&dtypeName, "dtype", "Float64", "Dtype of the tensor")
	cmd.Flags().IntSliceVar(&dims, "dims", nil, "Dimensions of the tensor, by default a scalar for one value or a vector")
	cmd.Flags().StringVar(&outPath, "out", "", "File to write the tensor to")
	cmd.Flags().StringVar(&name, "name", "", "Name stored with the tensor")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
