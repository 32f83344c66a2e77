package geometry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestOverscanTables verifies that every calibrated table passes its own
// consistency check.
func TestOverscanTables(t *testing.T) {
	for _, binX := range []int{1, 2, 4} {
		tab, err := Overscan(binX)
		if err != nil {
			t.Fatalf("Overscan(%d): %v", binX, err)
		}
		if err := Validate(tab); err != nil {
			t.Errorf("binning %d table invalid: %v", binX, err)
		}
	}
}

func TestOverscanUnsupportedBinning(t *testing.T) {
	if _, err := Overscan(3); !errors.Is(err, ErrUnsupportedBinning) {
		t.Errorf("Overscan(3) error = %v, want ErrUnsupportedBinning", err)
	}
	if _, err := TrimY(8); !errors.Is(err, ErrUnsupportedBinning) {
		t.Errorf("TrimY(8) error = %v, want ErrUnsupportedBinning", err)
	}
}

func TestValidateRejectsOverlap(t *testing.T) {
	tab, err := Overscan(1)
	if err != nil {
		t.Fatal(err)
	}
	// Push channel 1 back into channel 0's span.
	tab[1][0] = tab[0].Over2End()
	if err := Validate(tab); err == nil {
		t.Error("expected overlap to be rejected")
	}

	tab, _ = Overscan(1)
	tab[2][3] = tab[2][2] - 1
	if err := Validate(tab); err == nil {
		t.Error("expected decreasing bounds to be rejected")
	}
}

// TestEffectiveWidth checks that the effective width of a readout is the
// sum of its four channel image widths.
func TestEffectiveWidth(t *testing.T) {
	tests := []struct {
		binX, detID int
		want        int
	}{
		{1, DetLeft, 512 + 512 + 512 + 512},
		{1, DetRight, 512 + 512 + 512 + 512},
		{2, DetLeft, 256 * 4},
		{2, DetRight, 256 + 256 + 256 + 256},
		{4, DetLeft, 128 * 4},
	}
	for _, tt := range tests {
		got, err := EffectiveWidth(tt.binX, tt.detID)
		if err != nil {
			t.Fatalf("EffectiveWidth(%d, %d): %v", tt.binX, tt.detID, err)
		}
		if got != tt.want {
			t.Errorf("EffectiveWidth(%d, %d) = %d, want %d", tt.binX, tt.detID, got, tt.want)
		}
	}
}

// TestGapPixels checks the CCD gap width against the physical gap size
// divided by the binned plate scale.
func TestGapPixels(t *testing.T) {
	tests := []struct {
		binX, want int
	}{
		{1, 48}, // round(5 / 0.104)
		{2, 24},
		{4, 12},
	}
	for _, tt := range tests {
		if got := GapPixels(tt.binX); got != tt.want {
			t.Errorf("GapPixels(%d) = %d, want %d", tt.binX, got, tt.want)
		}
	}
}

func TestBadPixels(t *testing.T) {
	if _, ok := BadPixels(DetLeft, 1); ok {
		t.Error("left detector should have no bad-pixel table")
	}
	run, ok := BadPixels(DetRight, 2)
	if !ok {
		t.Fatal("right detector binning 2 should have a bad-pixel run")
	}
	if run.X1 != 397 || run.X2 != 397 {
		t.Errorf("bad-pixel columns = [%d, %d], want [397, 397]", run.X1, run.X2)
	}
	if _, ok := BadPixels(DetRight, 4); ok {
		t.Error("no bad-pixel run is calibrated for binning 4")
	}
}

func TestSlitlets(t *testing.T) {
	for _, binX := range []int{1, 2, 4} {
		boxes, err := Slitlets(binX)
		if err != nil {
			t.Fatalf("Slitlets(%d): %v", binX, err)
		}
		if len(boxes) != SlitletCount {
			t.Fatalf("Slitlets(%d) returned %d boxes, want %d", binX, len(boxes), SlitletCount)
		}
		// Y centers must increase monotonically with the slitlet index.
		for i := 1; i < len(boxes); i++ {
			if boxes[i].CY <= boxes[i-1].CY {
				t.Errorf("binning %d: slitlet %d CY %.1f not above slitlet %d CY %.1f",
					binX, i, boxes[i].CY, i-1, boxes[i-1].CY)
			}
		}
	}

	unbinned, _ := Slitlets(1)
	binned, _ := Slitlets(2)
	if binned[0].W != unbinned[0].W/2 {
		t.Errorf("binned box width = %.1f, want %.1f", binned[0].W, unbinned[0].W/2)
	}

	if _, err := Slitlets(3); !errors.Is(err, ErrUnsupportedBinning) {
		t.Errorf("Slitlets(3) error = %v, want ErrUnsupportedBinning", err)
	}
}

func TestParseRegionFile(t *testing.T) {
	content := `# Region file format: DS9 version 4.1
global color=green
image
box(1036.0,46.0,69.0,80.0,0.0)
circle(10,10,5)
box(1036.0, 132.75, 69.0, 80.0)
`
	path := filepath.Join(t.TempDir(), "pseudoslit.reg")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	boxes, err := ParseRegionFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(boxes) != 2 {
		t.Fatalf("parsed %d boxes, want 2", len(boxes))
	}
	if boxes[0].CX != 1036.0 || boxes[0].CY != 46.0 || boxes[0].W != 69.0 || boxes[0].H != 80.0 {
		t.Errorf("box 0 = %+v", boxes[0])
	}
	if boxes[1].CY != 132.75 {
		t.Errorf("box 1 CY = %v, want 132.75", boxes[1].CY)
	}
}

func TestParseRegionFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.reg")
	if err := os.WriteFile(path, []byte("# nothing here\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseRegionFile(path); err == nil {
		t.Error("expected an error for a region file without boxes")
	}
}
