// Command clinfo prints the platform and device capability tables the
// driver reports, the way the eponymous OpenCL tool does.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/daemyung/clmtl/cl"
	"github.com/daemyung/clmtl/driver"
	_ "github.com/daemyung/clmtl/mtl/metal"
	_ "github.com/daemyung/clmtl/mtl/softmtl"
)

func main() {
	root := &cobra.Command{
		Use:          "clinfo",
		Short:        "Print the clmtl platform and device info",
		SilenceUsage: true,
		RunE:         run,
	}
	root.Flags().Bool("formats", false, "also list the supported image formats")
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	platform := driver.GetPlatform()
	device, err := driver.GetDevice()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Property", "Value"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	rows := [][]string{
		{"Platform Name", platform.Name()},
		{"Platform Vendor", platform.Vendor()},
		{"Platform Version", platform.Version()},
		{"Platform Profile", platform.Profile()},
		{"Platform Extensions", platform.Extensions()},
		{"Device Name", device.Name()},
		{"Device Vendor", device.Vendor()},
		{"Device Version", device.Version()},
		{"Device OpenCL C Version", device.CVersion()},
		{"Max Compute Units", fmt.Sprint(device.MaxComputeUnits())},
		{"Max Work Group Size", fmt.Sprint(device.MaxWorkGroupSize())},
		{"Max Work Item Sizes", fmt.Sprint(device.MaxWorkItemSizes())},
		{"Global Memory Size", fmt.Sprint(device.GlobalMemSize())},
		{"Max Allocation Size", fmt.Sprint(device.MaxMemAllocSize())},
		{"Local Memory Size", fmt.Sprint(device.LocalMemSize())},
		{"Image Support", fmt.Sprint(device.ImageSupport())},
		{"2D Image Max Size", fmt.Sprintf("%dx%d", device.Image2DMaxWidth(), device.Image2DMaxHeight())},
		{"3D Image Max Size", fmt.Sprintf("%dx%dx%d",
			device.Image3DMaxWidth(), device.Image3DMaxHeight(), device.Image3DMaxDepth())},
	}
	table.AppendBulk(rows)
	table.Render()

	if ok, _ := cmd.Flags().GetBool("formats"); ok {
		context, err := driver.NewContext(device)
		if err != nil {
			return err
		}
		defer context.Release()
		printFormats(cmd, context)
	}
	return nil
}

func printFormats(cmd *cobra.Command, context *driver.Context) {
	formats := context.SupportedImageFormats(cl.MemReadWrite, cl.Image2D)
	sort.Slice(formats, func(i, j int) bool {
		if formats[i].Order != formats[j].Order {
			return formats[i].Order < formats[j].Order
		}
		return formats[i].Type < formats[j].Type
	})

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Channel Order", "Channel Type", "Element Bytes"})
	for _, f := range formats {
		table.Append([]string{
			fmt.Sprintf("%#x", uint32(f.Order)),
			fmt.Sprintf("%#x", uint32(f.Type)),
			fmt.Sprint(f.ElemSize()),
		})
	}
	table.Render()
}
