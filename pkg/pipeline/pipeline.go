// Package pipeline orchestrates the reduction stages: bias subtraction,
// overscan removal, bad-pixel repair, channel stacking, pseudo-slit
// integration, flat fielding and image reconstruction. It is the entry
// point the ingestion layer calls; the stage packages stay pure and all
// policy (calibration paths, registration options, logging) lives here.
package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"ifureduce/pkg/bias"
	"ifureduce/pkg/config"
	"ifureduce/pkg/fitting"
	"ifureduce/pkg/flatfield"
	"ifureduce/pkg/frame"
	"ifureduce/pkg/geometry"
	"ifureduce/pkg/overscan"
	"ifureduce/pkg/reconstruct"
	"ifureduce/pkg/slitlet"
)

// Header flag recording whether a calibration bias template was used, or
// the frame's own overscan rows had to stand in for one.
const keyBiasTemplate = "BIASTMPL"

// Pipeline reduces IFU exposures. The configuration and geometry tables
// are read-only after construction, so one Pipeline may serve concurrent
// reductions.
type Pipeline struct {
	cfg *config.Config
	log zerolog.Logger
}

// New returns a pipeline using the given configuration and logger.
func New(cfg *config.Config, log zerolog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, log: log}
}

func (p *Pipeline) correlateOptions() fitting.CorrelateOptions {
	reg := p.cfg.Registration
	return fitting.CorrelateOptions{
		Step:       reg.Step,
		Detrend:    reg.Detrend,
		Order:      reg.FitOrder,
		Iterations: reg.Iterations,
		HighNsig:   reg.HighNsig,
		LowNsig:    reg.LowNsig,
	}
}

func (p *Pipeline) flatOptions() flatfield.Options {
	return flatfield.Options{
		ShiftEnabled:       p.cfg.Pipeline.ShiftFlat,
		ReferenceRow:       p.cfg.Registration.ReferenceRow,
		StabilityThreshold: p.cfg.Registration.StabilityThreshold,
		Correlate:          p.correlateOptions(),
	}
}

func (p *Pipeline) expandMode() reconstruct.ExpandMode {
	if p.cfg.Pipeline.SmoothExpand {
		return reconstruct.Smooth
	}
	return reconstruct.Replicate
}

// slitletBoxes returns the pseudo-slit footprints, preferring a region
// file configured by the operator over the built-in table.
func (p *Pipeline) slitletBoxes(binX int) ([]geometry.Box, error) {
	if p.cfg.Pipeline.RegionFile != "" {
		return geometry.ParseRegionFile(p.cfg.Pipeline.RegionFile)
	}
	return geometry.Slitlets(binX)
}

// Preprocess applies the per-readout corrections to one raw frame: bias
// subtraction against the calibration template (or the self-derived
// fallback), overscan removal with gain correction, and bad-pixel
// repair. A frame that already carries a pipeline version tag is refused
// with ErrAlreadyProcessed rather than reduced twice.
func (p *Pipeline) Preprocess(raw *frame.Frame) (*frame.Frame, error) {
	if v, ok := raw.Header.Get(frame.VersionKey); ok {
		return nil, fmt.Errorf("%w: %s=%v", frame.ErrAlreadyProcessed, frame.VersionKey, v)
	}
	binX, err := raw.BinX()
	if err != nil {
		return nil, err
	}
	detID, err := raw.DetID()
	if err != nil {
		return nil, err
	}

	tmplPath := bias.TemplatePath(p.cfg.Pipeline.TemplatePrefix, binX, detID)
	tmpl, err := bias.LoadTemplate(tmplPath, raw.Width)
	usedTemplate := err == nil
	switch {
	case err == nil:
	case errors.Is(err, bias.ErrMissingCalibration):
		p.log.Warn().Str("template", tmplPath).Msg(
			"no usable bias template, deriving bias from top overscan rows")
		tmpl = bias.FallbackTemplate(raw)
	default:
		return nil, err
	}

	sub, err := bias.Subtract(raw, tmpl)
	if err != nil {
		return nil, err
	}
	// The tag goes on the product header; the raw frame stays untouched.
	if err := frame.PutVersion(sub.Header); err != nil {
		return nil, err
	}
	sub.Header.Set(keyBiasTemplate, usedTemplate,
		"True: bias template calibration file was used")

	corrected, err := overscan.Remove(sub)
	if err != nil {
		return nil, err
	}
	return overscan.RepairBadPixels(corrected)
}

// PreprocessFile reads one raw readout and preprocesses it.
func (p *Pipeline) PreprocessFile(path string) (*frame.Frame, error) {
	raw, err := frame.Read(path)
	if err != nil {
		return nil, err
	}
	p.log.Debug().Str("file", path).Msg("preprocessing raw frame")
	out, err := p.Preprocess(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// ReduceFrames runs the full reduction on a preloaded exposure pair and
// returns the reconstructed image. The two frames may be passed in
// either order; they are told apart by their DET-ID keyword.
func (p *Pipeline) ReduceFrames(a, b *frame.Frame) (*frame.Frame, error) {
	left, right, err := orderPair(a, b)
	if err != nil {
		return nil, err
	}

	correctedLeft, err := p.Preprocess(left)
	if err != nil {
		return nil, err
	}
	correctedRight, err := p.Preprocess(right)
	if err != nil {
		return nil, err
	}

	stacked, err := overscan.StackPair(correctedLeft, correctedRight)
	if err != nil {
		return nil, err
	}
	binX, err := stacked.BinX()
	if err != nil {
		return nil, err
	}

	boxes, err := p.slitletBoxes(binX)
	if err != nil {
		return nil, err
	}
	slit, err := slitlet.Integrate(stacked, boxes)
	if err != nil {
		return nil, err
	}
	p.log.Debug().Int("slitlets", slit.Height).Int("width", slit.Width).
		Msg("integrated pseudo-slit regions")

	flatted, err := p.applyFlat(slit)
	if err != nil {
		return nil, err
	}

	recon, err := reconstruct.Expand(flatted, binX, p.expandMode())
	if err != nil {
		return nil, err
	}
	if err := reconstruct.WriteAstrometry(stacked.Header, recon.Header, binX,
		geometry.FieldRotation, geometry.PlateScale, geometry.SlitletScale); err != nil {
		return nil, err
	}
	recon.Header.Transfer(flatted.Header, []string{
		flatfield.KeyShift, flatfield.KeyShiftStd,
		flatfield.KeyIsShifted, flatfield.KeyIsFlatted,
	})
	if err := frame.PutVersion(recon.Header); err != nil {
		return nil, err
	}
	return recon, nil
}

// applyFlat divides the spectral image by the configured flat. A missing
// or incompatible flat degrades to unflattened output with the
// degradation recorded in the header, never to a silent failure.
func (p *Pipeline) applyFlat(slit *frame.Frame) (*frame.Frame, error) {
	path := p.cfg.Pipeline.FlatFile
	if path == "" {
		slit.Header.Set(flatfield.KeyIsFlatted, false, "True: flat fielding is applied")
		return slit, nil
	}

	flat, err := frame.Read(path)
	if err == nil && !frame.CheckVersion(flat.Header) {
		err = fmt.Errorf("%w: %s has an incompatible version tag",
			bias.ErrMissingCalibration, path)
	}
	if err != nil {
		p.log.Warn().Str("flat", path).Err(err).Msg(
			"flat unusable, writing unflattened output")
		slit.Header.Set(flatfield.KeyIsFlatted, false, "True: flat fielding is applied")
		return slit, nil
	}
	if flat.Width != slit.Width || flat.Height != slit.Height {
		return nil, fmt.Errorf("%w: flat %dx%d vs spectral image %dx%d",
			overscan.ErrFrameGeometryMismatch,
			flat.Width, flat.Height, slit.Width, slit.Height)
	}

	norm, err := flatfield.Normalize(flat)
	if err != nil {
		return nil, err
	}
	out, res, err := flatfield.Apply(slit, norm, p.flatOptions())
	if err != nil {
		return nil, err
	}
	p.log.Info().Float64("shift", res.Shift).Float64("stability", res.Stability).
		Bool("shifted", res.Shifted).Msg("flat fielding applied")
	return out, nil
}

// ReducePair reads and reduces one exposure pair.
func (p *Pipeline) ReducePair(path1, path2 string) (*frame.Frame, error) {
	a, err := frame.Read(path1)
	if err != nil {
		return nil, err
	}
	b, err := frame.Read(path2)
	if err != nil {
		return nil, err
	}
	return p.ReduceFrames(a, b)
}

// orderPair identifies the left and right readouts by DET-ID.
func orderPair(a, b *frame.Frame) (left, right *frame.Frame, err error) {
	da, err := a.DetID()
	if err != nil {
		return nil, nil, err
	}
	db, err := b.DetID()
	if err != nil {
		return nil, nil, err
	}
	switch {
	case da == geometry.DetLeft && db == geometry.DetRight:
		return a, b, nil
	case da == geometry.DetRight && db == geometry.DetLeft:
		return b, a, nil
	}
	return nil, nil, fmt.Errorf("%w: DET-ID %d and %d do not form a pair",
		overscan.ErrFrameGeometryMismatch, da, db)
}

// Names of the flat-field lamp filters as recorded in the FILTER
// keywords, mapped to the short band tags used in flat file names.
var flatFilterTags = map[string]string{
	"SCFCFLBI01": "I",
	"SCFCFLBR01": "R",
}

// BuildFlat reduces a flat exposure pair into a normalized flat product
// and returns it with its conventional file name.
func (p *Pipeline) BuildFlat(path1, path2 string) (*frame.Frame, string, error) {
	a, err := frame.Read(path1)
	if err != nil {
		return nil, "", err
	}
	b, err := frame.Read(path2)
	if err != nil {
		return nil, "", err
	}
	left, right, err := orderPair(a, b)
	if err != nil {
		return nil, "", err
	}

	correctedLeft, err := p.Preprocess(left)
	if err != nil {
		return nil, "", err
	}
	correctedRight, err := p.Preprocess(right)
	if err != nil {
		return nil, "", err
	}
	stacked, err := overscan.StackPair(correctedLeft, correctedRight)
	if err != nil {
		return nil, "", err
	}
	binX, err := stacked.BinX()
	if err != nil {
		return nil, "", err
	}
	boxes, err := p.slitletBoxes(binX)
	if err != nil {
		return nil, "", err
	}
	slit, err := slitlet.Integrate(stacked, boxes)
	if err != nil {
		return nil, "", err
	}
	flat, err := flatfield.Normalize(slit)
	if err != nil {
		return nil, "", err
	}
	// The spectral image inherited the readouts' version tag through the
	// header clones; the calibration product gets a fresh one.
	flat.Header.Remove(frame.VersionKey)
	if err := frame.PutVersion(flat.Header); err != nil {
		return nil, "", err
	}

	var bands strings.Builder
	for _, key := range []string{"FILTER01", "FILTER02", "FILTER03"} {
		if v, ok := stacked.Header.Get(key); ok {
			if tag, known := flatFilterTags[fmt.Sprint(v)]; known {
				bands.WriteString(tag)
			}
		}
	}
	name := fmt.Sprintf("flat_%d_%s.fits", binX, bands.String())
	return flat, name, nil
}

// BuildBiasTemplate derives a bias template from a bias exposure file
// and saves it under the conventional calibration name in outputDir.
func (p *Pipeline) BuildBiasTemplate(path, outputDir string, nsigma float64) (string, error) {
	fr, err := frame.Read(path)
	if err != nil {
		return "", err
	}
	binX, err := fr.BinX()
	if err != nil {
		return "", err
	}
	detID, err := fr.DetID()
	if err != nil {
		return "", err
	}

	tmpl := bias.BuildTemplate(fr, nsigma)
	base := filepath.Base(p.cfg.Pipeline.TemplatePrefix)
	out := filepath.Join(outputDir, bias.TemplatePath(base, binX, detID))
	if err := bias.SaveTemplate(out, tmpl, p.cfg.Output.Overwrite); err != nil {
		return "", err
	}
	p.log.Info().Str("file", out).Msg("bias template created")
	return out, nil
}
