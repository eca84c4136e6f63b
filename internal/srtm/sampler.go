package srtm

import (
	"fmt"
	"math"
)

// Bilinear blends four corner samples at fractional offsets fx (east)
// and fy (south), both in [0, 1]. If any corner is the missing-data
// sentinel the result is missing; no reconstruction is attempted.
func Bilinear(z00, z10, z01, z11 int16, fx, fy float64) float64 {
	if z00 == MissingValue || z10 == MissingValue || z01 == MissingValue || z11 == MissingValue {
		return float64(MissingValue)
	}
	// Uniform cells are exact; the weighted sum below can drift by an
	// ulp and flat terrain must stay flat.
	if z00 == z10 && z00 == z01 && z00 == z11 {
		return float64(z00)
	}
	return (1-fx)*(1-fy)*float64(z00) +
		fx*(1-fy)*float64(z10) +
		(1-fx)*fy*float64(z01) +
		fx*fy*float64(z11)
}

// SampleElevation interpolates the tile at (lat, lon). Coordinates are
// mapped to fractional grid positions with row 0 at the north edge and
// clamped to the grid, so samples exactly on a tile boundary replicate
// the border row or column.
func (t *Tile) SampleElevation(lat, lon float64) (float64, error) {
	if t.Width < 2 || t.Height < 2 || len(t.Samples) != t.Width*t.Height {
		return 0, fmt.Errorf("%w: %dx%d grid with %d samples", ErrInvalidFormat, t.Width, t.Height, len(t.Samples))
	}

	x := (lon - t.MinLon) / (t.MaxLon - t.MinLon) * float64(t.Width-1)
	y := (t.MaxLat - lat) / (t.MaxLat - t.MinLat) * float64(t.Height-1)

	x = clamp(x, 0, float64(t.Width-1))
	y = clamp(y, 0, float64(t.Height-1))

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := min(x0+1, t.Width-1)
	y1 := min(y0+1, t.Height-1)

	fx := x - float64(x0)
	fy := y - float64(y0)

	z00 := t.Samples[y0*t.Width+x0]
	z10 := t.Samples[y0*t.Width+x1]
	z01 := t.Samples[y1*t.Width+x0]
	z11 := t.Samples[y1*t.Width+x1]

	return Bilinear(z00, z10, z01, z11, fx, fy), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
