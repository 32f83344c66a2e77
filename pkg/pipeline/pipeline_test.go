package pipeline

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"ifureduce/pkg/bias"
	"ifureduce/pkg/config"
	"ifureduce/pkg/frame"
	"ifureduce/pkg/geometry"
	"ifureduce/pkg/overscan"
)

const (
	rawWidth  = 1104 // binning-2 readout including overscans
	rawHeight = 1000
	biasLevel = 100.0
	signal    = 10.0
)

// rawReadout builds a synthetic binning-2 readout: the bias level
// everywhere, plus a flat signal in the image regions of the frame's
// detector side. With a matching template the reduction must recover
// exactly the signal times the amplifier gain.
func rawReadout(t *testing.T, detID int) *frame.Frame {
	t.Helper()
	fr := frame.New(rawWidth, rawHeight)
	for i := range fr.Data {
		fr.Data[i] = biasLevel
	}
	tab, err := geometry.Overscan(2)
	if err != nil {
		t.Fatal(err)
	}
	base := geometry.SideBase(detID)
	for j := base; j < base+geometry.ChannelsPerSide; j++ {
		ch := tab[j]
		for y := 0; y < fr.Height; y++ {
			for x := ch.ImageStart() - 1; x < ch.ImageEnd(); x++ {
				fr.SetPix(x, y, biasLevel+signal)
			}
		}
	}
	fr.Header.Set(frame.KeyBinX, 2, "")
	fr.Header.Set(frame.KeyBinY, 2, "")
	fr.Header.Set(frame.KeyDetID, detID, "")
	fr.Header.Set("EXP-ID", fmt.Sprintf("IFUA000%d", detID), "")
	fr.Header.Set("OBJECT", "TESTFIELD", "")
	fr.Header.Set("CRVAL1", 49.95, "")
	fr.Header.Set("CRVAL2", 41.51, "")
	fr.Header.Set("CD1_1", -1e-5, "")
	fr.Header.Set("CD1_2", 0.0, "")
	fr.Header.Set("CD2_1", 0.0, "")
	fr.Header.Set("CD2_2", 1e-5, "")
	return fr
}

// testSetup writes the calibration products and a pipeline configured
// against them: flat bias templates at the bias level and a compact
// region file whose boxes sit inside the short test frames.
func testSetup(t *testing.T) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()

	tmpl := make([]float64, rawWidth)
	for i := range tmpl {
		tmpl[i] = biasLevel
	}
	prefix := filepath.Join(dir, "bias_template")
	for _, detID := range []int{geometry.DetRight, geometry.DetLeft} {
		if err := bias.SaveTemplate(bias.TemplatePath(prefix, 2, detID), tmpl, false); err != nil {
			t.Fatal(err)
		}
	}

	var reg strings.Builder
	reg.WriteString("# test pseudo-slit footprints\n")
	for i := 0; i < geometry.SlitletCount; i++ {
		fmt.Fprintf(&reg, "box(500.0,%v,6.0,4.0,0.0)\n", 10+8*i)
	}
	regPath := filepath.Join(dir, "pseudoslit.reg")
	if err := os.WriteFile(regPath, []byte(reg.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Pipeline.TemplatePrefix = prefix
	cfg.Pipeline.RegionFile = regPath
	cfg.Output.Overwrite = true

	return New(cfg, zerolog.Nop()), dir
}

func writeRaw(t *testing.T, dir, name string, fr *frame.Frame) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := frame.Write(path, fr, false); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPreprocess(t *testing.T) {
	p, _ := testSetup(t)
	raw := rawReadout(t, geometry.DetRight)

	out, err := p.Preprocess(raw)
	if err != nil {
		t.Fatal(err)
	}

	wantWidth, _ := geometry.EffectiveWidth(2, geometry.DetRight)
	trim, _ := geometry.TrimY(2)
	if out.Width != wantWidth {
		t.Errorf("width = %d, want %d", out.Width, wantWidth)
	}
	if out.Height != rawHeight-trim[0] {
		t.Errorf("height = %d, want %d", out.Height, rawHeight-trim[0])
	}

	// A pixel in the second channel carries signal times that
	// amplifier's gain.
	base := geometry.SideBase(geometry.DetRight)
	want := signal * geometry.Gains[base+1]
	if got := out.At(300, 100); math.Abs(got-want) > 1e-9 {
		t.Errorf("pixel = %v, want %v", got, want)
	}

	if !out.Header.Bool("BIASTMPL") {
		t.Error("BIASTMPL should record the template file use")
	}
	if v, _ := out.Header.Get("BUNIT"); v != "electrons" {
		t.Errorf("BUNIT = %v", v)
	}
}

func TestPreprocessIdempotence(t *testing.T) {
	p, _ := testSetup(t)
	raw := rawReadout(t, geometry.DetLeft)
	if err := frame.PutVersion(raw.Header); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Preprocess(raw); !errors.Is(err, frame.ErrAlreadyProcessed) {
		t.Errorf("tagged input error = %v, want ErrAlreadyProcessed", err)
	}
}

// Preprocess must build a new frame; the raw readout stays as read.
func TestPreprocessKeepsInputIntact(t *testing.T) {
	p, _ := testSetup(t)
	raw := rawReadout(t, geometry.DetLeft)
	before := raw.At(300, 100)

	out, err := p.Preprocess(raw)
	if err != nil {
		t.Fatal(err)
	}
	if raw.Header.Has(frame.VersionKey) {
		t.Error("version tag leaked into the input header")
	}
	if raw.At(300, 100) != before {
		t.Error("input pixels mutated")
	}
	if !frame.CheckVersion(out.Header) {
		t.Error("output should carry the pipeline version")
	}
}

// Without template files the bias is derived from the frame itself and
// the degradation is recorded.
func TestPreprocessFallbackTemplate(t *testing.T) {
	p, _ := testSetup(t)
	p.cfg.Pipeline.TemplatePrefix = filepath.Join(t.TempDir(), "absent")

	raw := rawReadout(t, geometry.DetRight)
	out, err := p.Preprocess(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Header.Has("BIASTMPL") {
		t.Fatal("BIASTMPL missing")
	}
	if out.Header.Bool("BIASTMPL") {
		t.Error("BIASTMPL should be false for the self-derived template")
	}
}

func TestReducePair(t *testing.T) {
	p, dir := testSetup(t)
	ch1 := writeRaw(t, dir, "IFUA0001.fits", rawReadout(t, geometry.DetRight))
	ch2 := writeRaw(t, dir, "IFUA0002.fits", rawReadout(t, geometry.DetLeft))

	recon, err := p.ReducePair(ch1, ch2)
	if err != nil {
		t.Fatal(err)
	}

	// 24 slitlet rows expand by 4/binX = 2; width is the box width.
	if recon.Width != 6 || recon.Height != geometry.SlitletCount*2 {
		t.Fatalf("shape = %dx%d, want 6x%d", recon.Width, recon.Height, geometry.SlitletCount*2)
	}

	// Box column 500 lands in the second channel of the left half of
	// the stacked frame; each slitlet pixel sums 4 rows of gain-scaled
	// signal.
	want := 4 * signal * geometry.Gains[1]
	for y := 0; y < recon.Height; y++ {
		if got := recon.At(0, y); math.Abs(got-want) > 1e-9 {
			t.Fatalf("row %d = %v, want %v", y, got, want)
		}
	}

	if !frame.CheckVersion(recon.Header) {
		t.Error("reconstructed image must carry the pipeline version")
	}
	if v, _ := recon.Header.Get("OBJECT"); v != "TESTFIELD" {
		t.Errorf("OBJECT = %v", v)
	}
	if recon.Header.Bool("ISFLATED") {
		t.Error("ISFLATED should be false without a flat")
	}
	if !recon.Header.Has("CD1_1") || !recon.Header.Has("CD2_2") {
		t.Error("synthesized CD matrix missing")
	}
	if recon.Header.Has("CRVAL1") {
		t.Error("stale raw-frame CRVAL1 survived")
	}
}

func TestReducePairWrongDetectors(t *testing.T) {
	p, dir := testSetup(t)
	ch1 := writeRaw(t, dir, "a.fits", rawReadout(t, geometry.DetRight))
	ch2 := writeRaw(t, dir, "b.fits", rawReadout(t, geometry.DetRight))
	if _, err := p.ReducePair(ch1, ch2); !errors.Is(err, overscan.ErrFrameGeometryMismatch) {
		t.Errorf("error = %v, want ErrFrameGeometryMismatch", err)
	}
}

// A configured but unusable flat degrades to unflattened output rather
// than failing the exposure.
func TestReducePairMissingFlat(t *testing.T) {
	p, dir := testSetup(t)
	p.cfg.Pipeline.FlatFile = filepath.Join(dir, "no_such_flat.fits")
	ch1 := writeRaw(t, dir, "c1.fits", rawReadout(t, geometry.DetRight))
	ch2 := writeRaw(t, dir, "c2.fits", rawReadout(t, geometry.DetLeft))

	recon, err := p.ReducePair(ch1, ch2)
	if err != nil {
		t.Fatal(err)
	}
	if recon.Header.Bool("ISFLATED") {
		t.Error("ISFLATED should be false for a missing flat")
	}
}

func TestBuildBiasTemplate(t *testing.T) {
	p, dir := testSetup(t)
	fr := frame.New(10, 8)
	for i := range fr.Data {
		fr.Data[i] = biasLevel
	}
	fr.Header.Set(frame.KeyBinX, 1, "")
	fr.Header.Set(frame.KeyDetID, 1, "")
	path := writeRaw(t, dir, "bias.fits", fr)

	out, err := p.BuildBiasTemplate(path, dir, 3.0)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(out) != "bias_template11.fits" {
		t.Errorf("template name = %q", filepath.Base(out))
	}
	tmpl, err := bias.LoadTemplate(out, 10)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range tmpl {
		if v != biasLevel {
			t.Errorf("sample %d = %v, want %v", i, v, biasLevel)
		}
	}
}

func TestBuildFlat(t *testing.T) {
	p, dir := testSetup(t)
	right := rawReadout(t, geometry.DetRight)
	right.Header.Set("FILTER01", "SCFCFLBI01", "")
	ch1 := writeRaw(t, dir, "f1.fits", right)
	ch2 := writeRaw(t, dir, "f2.fits", rawReadout(t, geometry.DetLeft))

	flat, name, err := p.BuildFlat(ch1, ch2)
	if err != nil {
		t.Fatal(err)
	}
	if name != "flat_2_I.fits" {
		t.Errorf("flat name = %q, want flat_2_I.fits", name)
	}
	if flat.Height != geometry.SlitletCount {
		t.Errorf("flat rows = %d, want %d", flat.Height, geometry.SlitletCount)
	}
	if got := flat.Mean(); math.Abs(got-1) > 1e-9 {
		t.Errorf("flat mean = %v, want 1", got)
	}
	// The product must be freshly taggable as a calibration file even
	// though its header descends from version-tagged readouts.
	if !frame.CheckVersion(flat.Header) {
		t.Error("flat product should carry the current pipeline version")
	}
}
