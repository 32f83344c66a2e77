package geometry

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ParseRegionFile reads pseudo-slit footprint boxes from a DS9-style
// region file. Only "box(cx,cy,w,h[,angle])" lines are interpreted; every
// other line is ignored. Boxes are returned in file order, which must
// follow the slitlet-index convention.
func ParseRegionFile(path string) ([]Box, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening region file: %w", err)
	}
	defer f.Close()

	var boxes []Box
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "box(") {
			continue
		}
		lp := strings.IndexByte(line, '(')
		rp := strings.IndexByte(line, ')')
		if rp < lp {
			return nil, fmt.Errorf("malformed region line: %q", line)
		}
		fields := strings.Split(line[lp+1:rp], ",")
		if len(fields) < 4 {
			return nil, fmt.Errorf("box needs at least 4 values: %q", line)
		}
		vals := make([]float64, 4)
		for i := 0; i < 4; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("parsing region value %q: %w", fields[i], err)
			}
			vals[i] = v
		}
		boxes = append(boxes, Box{CX: vals[0], CY: vals[1], W: vals[2], H: vals[3]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading region file: %w", err)
	}
	if len(boxes) == 0 {
		return nil, fmt.Errorf("no box regions found in %s", path)
	}
	return boxes, nil
}
