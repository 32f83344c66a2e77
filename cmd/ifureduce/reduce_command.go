package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ifureduce/internal/models"
	"ifureduce/pkg/pipeline"
)

// newReduceCommand reduces one or more exposure pairs. Arguments are
// raw readout files, two per exposure, left/right in either order.
func newReduceCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var flatFile string
	var workers int

	cmd := &cobra.Command{
		Use:   "reduce <ch1.fits> <ch2.fits> [<ch1.fits> <ch2.fits> ...]",
		Short: "Reduce exposure pairs into reconstructed images",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("expected an even number of readout files, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if flatFile != "" {
				ctx.cfg.Pipeline.FlatFile = flatFile
			}
			if workers > 0 {
				ctx.cfg.Pipeline.Workers = workers
			}

			exposures := make([]models.Exposure, 0, len(args)/2)
			for i := 0; i < len(args); i += 2 {
				id := strings.TrimSuffix(filepath.Base(args[i]), filepath.Ext(args[i]))
				exposures = append(exposures, models.Exposure{
					ID:     id,
					Ch1:    args[i],
					Ch2:    args[i+1],
					Output: filepath.Join(outputDir, id+"_rc.fits"),
				})
			}

			p := pipeline.New(ctx.cfg, ctx.log)
			results := p.ProcessBatch(exposures, ctx.cfg.Pipeline.Workers)

			failed := 0
			for _, res := range results {
				if res.Err != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d exposures failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory for reconstructed images")
	cmd.Flags().StringVar(&flatFile, "flat", "", "Flat-field calibration file")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent exposures (default from config)")

	return cmd
}
