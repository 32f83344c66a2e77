package pipeline

import (
	"fmt"

	"ifureduce/internal/models"
	"ifureduce/pkg/frame"
)

// reduceExposure runs one exposure end to end and writes the product.
func (p *Pipeline) reduceExposure(exp models.Exposure) error {
	recon, err := p.ReducePair(exp.Ch1, exp.Ch2)
	if err != nil {
		return err
	}
	if exp.Output == "" {
		return fmt.Errorf("exposure %s: no output path", exp.ID)
	}
	return frame.Write(exp.Output, recon, p.cfg.Output.Overwrite)
}

// ProcessBatch reduces a set of exposures concurrently with the given
// number of workers. Exposures are independent, so a failure in one is
// recorded in its BatchResult without aborting the rest. Results are
// returned in completion order.
func (p *Pipeline) ProcessBatch(exposures []models.Exposure, workers int) []models.BatchResult {
	if workers < 1 {
		workers = 1
	}
	if workers > len(exposures) {
		workers = len(exposures)
	}
	p.log.Info().Int("exposures", len(exposures)).Int("workers", workers).
		Msg("starting batch reduction")

	jobs := make(chan models.Exposure)
	resultChan := make(chan models.BatchResult)

	for w := 0; w < workers; w++ {
		go func() {
			for exp := range jobs {
				err := p.reduceExposure(exp)
				if err != nil {
					p.log.Error().Str("exposure", exp.ID).Err(err).
						Msg("exposure failed")
				} else {
					p.log.Info().Str("exposure", exp.ID).
						Str("output", exp.Output).Msg("exposure reduced")
				}
				resultChan <- models.BatchResult{Exposure: exp, Err: err}
			}
		}()
	}

	go func() {
		for _, exp := range exposures {
			jobs <- exp
		}
		close(jobs)
	}()

	results := make([]models.BatchResult, 0, len(exposures))
	for completed := 0; completed < len(exposures); completed++ {
		results = append(results, <-resultChan)
	}
	return results
}
