package chunks

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/terrainworks/worldapi/internal/geodesy"
	"github.com/terrainworks/worldapi/internal/srtm"
)

func testMapper() *geodesy.Mapper {
	return geodesy.NewMapper(46.0, -113.0, 100, geodesy.MetersPerDegreeLat)
}

func TestSampleConstantTile(t *testing.T) {
	tiles := &tileSet{tiles: []*srtm.Tile{
		makeTile(46, -113, func(row, col int) int16 { return 1500 }),
	}}
	s := NewSampler(testMapper(), tiles, tiles)

	chunk, err := s.Sample(context.Background(), 0, 0, 10)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(chunk.Heights) != 121 {
		t.Fatalf("heights length = %d, want 121", len(chunk.Heights))
	}
	for i, h := range chunk.Heights {
		if h != 1500.0 {
			t.Fatalf("height %d = %v, want 1500", i, h)
		}
	}
	if chunk.MinElevation != 1500 || chunk.MaxElevation != 1500 {
		t.Errorf("bounds = (%v, %v), want (1500, 1500)", chunk.MinElevation, chunk.MaxElevation)
	}
}

func TestSampleAllMissingTile(t *testing.T) {
	tiles := &tileSet{tiles: []*srtm.Tile{
		makeTile(46, -113, func(row, col int) int16 { return srtm.MissingValue }),
	}}
	s := NewSampler(testMapper(), tiles, tiles)

	chunk, err := s.Sample(context.Background(), 0, 0, 5)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(chunk.Heights) != 36 {
		t.Fatalf("heights length = %d, want 36", len(chunk.Heights))
	}
	for i, h := range chunk.Heights {
		if h != 0 {
			t.Fatalf("height %d = %v, want 0", i, h)
		}
	}
	if chunk.MinElevation != 0 || chunk.MaxElevation != 0 {
		t.Errorf("bounds = (%v, %v), want (0, 0)", chunk.MinElevation, chunk.MaxElevation)
	}
}

func TestSampleRejectsBadResolution(t *testing.T) {
	s := NewSampler(testMapper(), &tileSet{}, &tileSet{})
	for _, r := range []int{0, -1} {
		if _, err := s.Sample(context.Background(), 0, 0, r); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Sample(R=%d) error = %v, want ErrOutOfRange", r, err)
		}
	}
}

func TestSamplePropagatesResolveFailure(t *testing.T) {
	s := NewSampler(testMapper(), &tileSet{}, &tileSet{})
	if _, err := s.Sample(context.Background(), 0, 0, 4); err == nil {
		t.Fatal("expected error when no tile covers the chunk")
	}
}

// Adjacent chunks must produce bit-identical heights along their
// shared edge, for all vertices.
func TestEdgeCoincidence(t *testing.T) {
	gradient := func(row, col int) int16 { return int16(1000 + row) }
	tiles := &tileSet{tiles: []*srtm.Tile{makeTile(46, -113, gradient)}}
	s := NewSampler(testMapper(), tiles, tiles)
	ctx := context.Background()

	const r = 16
	grid := r + 1

	a, err := s.Sample(ctx, 0, 0, r)
	if err != nil {
		t.Fatal(err)
	}
	right, err := s.Sample(ctx, 1, 0, r)
	if err != nil {
		t.Fatal(err)
	}
	up, err := s.Sample(ctx, 0, 1, r)
	if err != nil {
		t.Fatal(err)
	}

	for z := 0; z < grid; z++ {
		got := a.Heights[z*grid+r]
		want := right.Heights[z*grid+0]
		if math.Float32bits(got) != math.Float32bits(want) {
			t.Fatalf("vertical seam vertex z=%d: %v (%x) != %v (%x)",
				z, got, math.Float32bits(got), want, math.Float32bits(want))
		}
	}
	for x := 0; x < grid; x++ {
		got := a.Heights[r*grid+x]
		want := up.Heights[0*grid+x]
		if math.Float32bits(got) != math.Float32bits(want) {
			t.Fatalf("horizontal seam vertex x=%d: %v != %v", x, got, want)
		}
	}
}

// The same guarantee must hold when the shared edge lies exactly on a
// DEM tile seam: the origin sits on the W114/W113 tile border, so the
// edge between chunks (-1,·) and (0,·) evaluates at lon = -113
// exactly. Per-vertex resolution pulls the eastern tile's border
// column there for both chunks.
func TestEdgeCoincidenceAcrossTileSeam(t *testing.T) {
	west := makeTile(46, -114, func(row, col int) int16 { return int16(500 + row/2) })
	east := makeTile(46, -113, func(row, col int) int16 { return int16(2000 + row) })
	tiles := &tileSet{tiles: []*srtm.Tile{west, east}}
	s := NewSampler(testMapper(), tiles, tiles)
	ctx := context.Background()

	const r = 16
	grid := r + 1

	left, err := s.Sample(ctx, -1, 0, r)
	if err != nil {
		t.Fatal(err)
	}
	right, err := s.Sample(ctx, 0, 0, r)
	if err != nil {
		t.Fatal(err)
	}

	for z := 0; z < grid; z++ {
		got := left.Heights[z*grid+r]
		want := right.Heights[z*grid+0]
		if math.Float32bits(got) != math.Float32bits(want) {
			t.Fatalf("tile-seam vertex z=%d: %v != %v", z, got, want)
		}
	}

	// The seam column must come from the eastern tile (half-open
	// containment assigns lon = -113 to W113), not a clamped read of
	// the western tile.
	seam := left.Heights[0*grid+r]
	if seam < 2000 {
		t.Errorf("seam height %v should be sampled from the eastern tile", seam)
	}

	// Interior of the left chunk still reads the western tile.
	interior := left.Heights[0*grid]
	if interior >= 2000 {
		t.Errorf("left-chunk interior height %v should come from the western tile", interior)
	}
}

func TestSampleGradientMinMax(t *testing.T) {
	tiles := &tileSet{tiles: []*srtm.Tile{
		makeTile(46, -113, func(row, col int) int16 { return int16(1000 + row) }),
	}}
	s := NewSampler(testMapper(), tiles, tiles)

	chunk, err := s.Sample(context.Background(), 0, 0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if chunk.MinElevation >= chunk.MaxElevation {
		t.Errorf("gradient chunk bounds = (%v, %v), want min < max", chunk.MinElevation, chunk.MaxElevation)
	}
	if chunk.MinElevation < 1000 || chunk.MaxElevation > 2200 {
		t.Errorf("bounds (%v, %v) outside the tile's value range", chunk.MinElevation, chunk.MaxElevation)
	}
}
