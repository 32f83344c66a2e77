package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"ifureduce/pkg/config"
	"ifureduce/pkg/frame"
	"ifureduce/pkg/pipeline"
)

// newBiasTemplateCommand builds bias-template calibration files from
// bias exposures, one template per readout file.
func newBiasTemplateCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var nsigma float64

	cmd := &cobra.Command{
		Use:   "bias-template <bias.fits> [<bias.fits> ...]",
		Short: "Derive bias templates from bias exposures",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := pipeline.New(ctx.cfg, ctx.log)
			for _, path := range args {
				out, err := p.BuildBiasTemplate(path, outputDir, nsigma)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Println(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory for template files")
	cmd.Flags().Float64Var(&nsigma, "nsigma", 3.0, "Clipping threshold for the column means")

	return cmd
}

// newFlatCommand reduces a flat-lamp exposure pair into a normalized
// flat product named after the binning and lamp filters.
func newFlatCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var outputName string

	cmd := &cobra.Command{
		Use:   "flat <ch1.fits> <ch2.fits>",
		Short: "Build a normalized flat from a flat-lamp exposure pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := pipeline.New(ctx.cfg, ctx.log)
			flat, name, err := p.BuildFlat(args[0], args[1])
			if err != nil {
				return err
			}
			if outputName != "" {
				name = outputName
			}
			out := filepath.Join(outputDir, name)
			if err := frame.Write(out, flat, ctx.cfg.Output.Overwrite); err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory for the flat product")
	cmd.Flags().StringVar(&outputName, "name", "", "Override the conventional flat file name")

	return cmd
}

// newConfigInitCommand writes the default configuration to a file the
// operator can edit.
func newConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config-init <path>",
		Short: "Write the default configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SaveConfig(config.DefaultConfig(), args[0]); err != nil {
				return err
			}
			fmt.Println(args[0])
			return nil
		},
	}
}
