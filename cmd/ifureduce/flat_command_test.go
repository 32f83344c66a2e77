package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ifureduce/pkg/bias"
	"ifureduce/pkg/config"
	"ifureduce/pkg/frame"
	"ifureduce/pkg/geometry"
)

// flatLampReadout builds a synthetic binning-2 flat-lamp readout: a
// uniform bias level plus lamp signal in the image regions.
func flatLampReadout(t *testing.T, detID int) *frame.Frame {
	t.Helper()
	fr := frame.New(1104, 1000)
	for i := range fr.Data {
		fr.Data[i] = 100
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
				fr.SetPix(x, y, 110)
			}
		}
	}
	fr.Header.Set(frame.KeyBinX, 2, "")
	fr.Header.Set(frame.KeyBinY, 2, "")
	fr.Header.Set(frame.KeyDetID, detID, "")
	return fr
}

// TestFlatCommand runs the flat subcommand end to end and checks that
// the calibration product lands on disk as a loadable, version-tagged
// file.
func TestFlatCommand(t *testing.T) {
	dir := t.TempDir()

	tmpl := make([]float64, 1104)
	for i := range tmpl {
		tmpl[i] = 100
	}
	prefix := filepath.Join(dir, "bias_template")
	for _, detID := range []int{geometry.DetRight, geometry.DetLeft} {
		if err := bias.SaveTemplate(bias.TemplatePath(prefix, 2, detID), tmpl, false); err != nil {
			t.Fatal(err)
		}
	}

	var reg strings.Builder
	for i := 0; i < geometry.SlitletCount; i++ {
		fmt.Fprintf(&reg, "box(500.0,%d,6.0,4.0,0.0)\n", 10+8*i)
	}
	regPath := filepath.Join(dir, "pseudoslit.reg")
	if err := os.WriteFile(regPath, []byte(reg.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Pipeline.TemplatePrefix = prefix
	cfg.Pipeline.RegionFile = regPath
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := config.SaveConfig(cfg, cfgPath); err != nil {
		t.Fatal(err)
	}

	right := flatLampReadout(t, geometry.DetRight)
	right.Header.Set("FILTER01", "SCFCFLBI01", "")
	ch1 := filepath.Join(dir, "lamp1.fits")
	if err := frame.Write(ch1, right, false); err != nil {
		t.Fatal(err)
	}
	ch2 := filepath.Join(dir, "lamp2.fits")
	if err := frame.Write(ch2, flatLampReadout(t, geometry.DetLeft), false); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCommand()
	cmd.SetArgs([]string{"flat", "--config", cfgPath, "-o", dir, ch1, ch2})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "flat_2_I.fits")
	flat, err := frame.Read(out)
	if err != nil {
		t.Fatalf("flat product not readable: %v", err)
	}
	if flat.Height != geometry.SlitletCount {
		t.Errorf("flat rows = %d, want %d", flat.Height, geometry.SlitletCount)
	}
	if !frame.CheckVersion(flat.Header) {
		t.Error("flat product lacks the pipeline version tag")
	}
}
