// Command clcc is the offline compiler: it runs .cl source through the same
// pipeline the driver uses and writes the portable IR binary and/or the
// native shader source.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daemyung/clmtl/clc"
	"github.com/daemyung/clmtl/spirv"
)

func main() {
	var (
		output    string
		mslOutput string
		defines   []string
		toolchain string
	)

	root := &cobra.Command{
		Use:          "clcc <source.cl>",
		Short:        "Compile OpenCL C to portable IR and native shader source",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			tc, err := clc.New(toolchain)
			if err != nil {
				return err
			}

			var options []string
			for _, d := range defines {
				options = append(options, "-D"+d)
			}
			ir, log, err := tc.Compile(string(source), options)
			if log != "" {
				fmt.Fprint(cmd.ErrOrStderr(), log)
			}
			if err != nil {
				return err
			}

			refl, err := spirv.Reflect(ir)
			if err != nil {
				return err
			}
			for kernel, bindings := range refl.Arguments {
				fmt.Fprintf(cmd.OutOrStdout(), "kernel %s: %d argument(s)\n", kernel, len(bindings))
				for _, b := range bindings {
					fmt.Fprintf(cmd.OutOrStdout(), "  arg %d: %s at binding %d\n", b.Ordinal, b.Kind, b.Index)
				}
			}

			if output != "" {
				if err := os.WriteFile(output, spirv.BytesFromWords(ir), 0o644); err != nil {
					return err
				}
			}
			if mslOutput != "" {
				msl, err := tc.Translate(ir)
				if err != nil {
					return err
				}
				if err := os.WriteFile(mslOutput, []byte(msl), 0o644); err != nil {
					return err
				}
			}
			return nil
		},
	}
	root.Flags().StringVarP(&output, "output", "o", "", "write the portable IR binary here")
	root.Flags().StringVar(&mslOutput, "msl", "", "write the native shader source here")
	root.Flags().StringArrayVarP(&defines, "define", "D", nil, "preprocessor definition name[=value]")
	root.Flags().StringVar(&toolchain, "toolchain", "", "toolchain selector, e.g. \"exec:/path/to/clspv\"")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
