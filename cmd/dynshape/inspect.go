package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/dynshape/dynops"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// maxValuesShown is the largest tensor whose values are printed by inspect.
const maxValuesShown = 16

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <files...>",
		Short: "List the tensors stored in the files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data [][]string
			for _, path := range args {
				name, t, err := dynops.ReadTensorFile(path)
				if err != nil {
					return err
				}
				values := "..."
				if t.Size() <= maxValuesShown {
					values = strings.ReplaceAll(fmt.Sprint(t.Value()), "\n", " ")
				}
				data = append(data, []string{path, name, t.DType().String(), fmt.Sprint(t.Shape().Dimensions),
					humanize.Bytes(uint64(t.Memory())), values})
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"FILE", "NAME", "DTYPE", "DIMENSIONS", "SIZE", "VALUES"})
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("    ")
			table.AppendBulk(data)
			table.Render()
			return nil
		},
	}
}
