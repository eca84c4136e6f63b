package srtm

import (
	"math"
	"testing"
)

func TestBilinearCorners(t *testing.T) {
	const z00, z10, z01, z11 = 100, 200, 300, 400

	tests := []struct {
		fx, fy float64
		want   float64
	}{
		{0, 0, z00},
		{1, 0, z10},
		{0, 1, z01},
		{1, 1, z11},
	}
	for _, tt := range tests {
		got := Bilinear(z00, z10, z01, z11, tt.fx, tt.fy)
		if got != tt.want {
			t.Errorf("Bilinear(fx=%v, fy=%v) = %v, want %v", tt.fx, tt.fy, got, tt.want)
		}
	}
}

func TestBilinearCenter(t *testing.T) {
	got := Bilinear(100, 200, 300, 400, 0.5, 0.5)
	if got != 250 {
		t.Errorf("Bilinear center = %v, want 250", got)
	}
}

func TestBilinearMissingPropagates(t *testing.T) {
	corners := [][4]int16{
		{MissingValue, 200, 300, 400},
		{100, MissingValue, 300, 400},
		{100, 200, MissingValue, 400},
		{100, 200, 300, MissingValue},
		{MissingValue, MissingValue, MissingValue, MissingValue},
	}
	fractions := [][2]float64{{0, 0}, {1, 1}, {0.5, 0.5}, {0.25, 0.75}}

	for _, c := range corners {
		for _, f := range fractions {
			got := Bilinear(c[0], c[1], c[2], c[3], f[0], f[1])
			if got != float64(MissingValue) {
				t.Errorf("Bilinear(%v, fx=%v, fy=%v) = %v, want missing", c, f[0], f[1], got)
			}
		}
	}
}

// gradientTile builds a small synthetic tile where sample = base + row.
func gradientTile(dim int, base int16) *Tile {
	samples := make([]int16, dim*dim)
	for row := 0; row < dim; row++ {
		for col := 0; col < dim; col++ {
			samples[row*dim+col] = base + int16(row)
		}
	}
	return &Tile{
		MinLat: 46, MaxLat: 47, MinLon: -113, MaxLon: -112,
		Width: dim, Height: dim, Samples: samples,
	}
}

func TestSampleElevationCorners(t *testing.T) {
	tile := gradientTile(1201, 1000)

	// Northwest corner of the cell is row 0.
	got, err := tile.SampleElevation(47.0, -113.0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1000 {
		t.Errorf("northwest sample = %v, want 1000", got)
	}

	// Southwest corner is the last row.
	got, err = tile.SampleElevation(46.0, -113.0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2200 {
		t.Errorf("southwest sample = %v, want 2200", got)
	}
}

func TestSampleElevationClampsBeyondEdges(t *testing.T) {
	tile := gradientTile(1201, 0)

	inside, err := tile.SampleElevation(46.0, -113.0)
	if err != nil {
		t.Fatal(err)
	}
	// Slightly outside the cell clamps to the border sample.
	outside, err := tile.SampleElevation(45.9999, -113.0001)
	if err != nil {
		t.Fatal(err)
	}
	if inside != outside {
		t.Errorf("clamped sample = %v, want %v", outside, inside)
	}
}

func TestSampleElevationConstantTile(t *testing.T) {
	dim := 1201
	samples := make([]int16, dim*dim)
	for i := range samples {
		samples[i] = 1500
	}
	tile := &Tile{MinLat: 46, MaxLat: 47, MinLon: -113, MaxLon: -112, Width: dim, Height: dim, Samples: samples}

	for _, p := range [][2]float64{{46.0, -113.0}, {46.5, -112.5}, {46.999, -112.001}} {
		got, err := tile.SampleElevation(p[0], p[1])
		if err != nil {
			t.Fatal(err)
		}
		if got != 1500 {
			t.Errorf("SampleElevation(%v, %v) = %v, want 1500", p[0], p[1], got)
		}
	}
}

func TestSampleElevationMidpoint(t *testing.T) {
	// 2x2 grid spanning the whole cell; center should average all four.
	tile := &Tile{
		MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1,
		Width: 2, Height: 2,
		Samples: []int16{10, 20, 30, 40},
	}
	got, err := tile.SampleElevation(0.5, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-25) > 1e-9 {
		t.Errorf("center sample = %v, want 25", got)
	}
}

func TestSampleElevationMissing(t *testing.T) {
	dim := 1201
	samples := make([]int16, dim*dim)
	for i := range samples {
		samples[i] = MissingValue
	}
	tile := &Tile{MinLat: 46, MaxLat: 47, MinLon: -113, MaxLon: -112, Width: dim, Height: dim, Samples: samples}

	got, err := tile.SampleElevation(46.4, -112.7)
	if err != nil {
		t.Fatal(err)
	}
	if got != float64(MissingValue) {
		t.Errorf("sample = %v, want missing", got)
	}
}

func TestSampleElevationInvalidGrid(t *testing.T) {
	tile := &Tile{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1, Width: 3, Height: 3, Samples: []int16{1, 2, 3}}
	if _, err := tile.SampleElevation(0.5, 0.5); err == nil {
		t.Fatal("expected error for mismatched sample count")
	}
}
