package chunks

import (
	"context"
	"fmt"

	"github.com/terrainworks/worldapi/internal/dem"
	"github.com/terrainworks/worldapi/internal/geodesy"
	"github.com/terrainworks/worldapi/internal/srtm"
)

// TileResolver ensures the DEM tile covering a point is locally
// present and returns its descriptor.
type TileResolver interface {
	Resolve(ctx context.Context, lat, lon float64) (dem.Descriptor, error)
}

// TileLoader returns the decoded grid for a resolved tile.
type TileLoader interface {
	Load(ctx context.Context, d dem.Descriptor) (*srtm.Tile, error)
}

// Sampler builds heightmaps from the DEM.
type Sampler struct {
	mapper   *geodesy.Mapper
	resolver TileResolver
	tiles    TileLoader
}

// NewSampler wires a sampler over the shared resolver and tile cache.
func NewSampler(mapper *geodesy.Mapper, resolver TileResolver, tiles TileLoader) *Sampler {
	return &Sampler{mapper: mapper, resolver: resolver, tiles: tiles}
}

// Sample fabricates the (resolution+1)² heightmap for a chunk.
//
// Vertex world coordinates are computed from the global cell index
// (chunk·R + local), never from a per-chunk base plus offset: the
// right edge of chunk k and the left edge of chunk k+1 then evaluate
// the same integers, yielding bit-identical seam coordinates and so
// bit-identical seam heights. The tile is resolved per vertex, so an
// edge lying exactly on a DEM seam reads the neighbor tile's border
// row instead of clamping past the current tile.
func (s *Sampler) Sample(ctx context.Context, chunkX, chunkZ, resolution int) (*TerrainChunk, error) {
	if resolution < 1 {
		return nil, fmt.Errorf("%w: resolution %d", ErrOutOfRange, resolution)
	}

	grid := resolution + 1
	cellSize := s.mapper.ChunkSizeMeters() / float64(resolution)

	raw := make([]float64, grid*grid)
	for z := 0; z < grid; z++ {
		for x := 0; x < grid; x++ {
			globalCellX := chunkX*resolution + x
			globalCellZ := chunkZ*resolution + z
			worldX := float64(globalCellX) * cellSize
			worldZ := float64(globalCellZ) * cellSize

			lat, lon := s.mapper.WorldMetersToLatLon(worldX, worldZ)

			descriptor, err := s.resolver.Resolve(ctx, lat, lon)
			if err != nil {
				return nil, fmt.Errorf("chunks: resolve tile for vertex (%d,%d): %w", x, z, err)
			}
			tile, err := s.tiles.Load(ctx, descriptor)
			if err != nil {
				return nil, fmt.Errorf("chunks: load tile %s: %w", descriptor.ObjectKey, err)
			}
			elevation, err := tile.SampleElevation(lat, lon)
			if err != nil {
				return nil, fmt.Errorf("chunks: sample vertex (%d,%d): %w", x, z, err)
			}
			raw[z*grid+x] = elevation
		}
	}

	return normalize(chunkX, chunkZ, resolution, raw), nil
}

// normalize converts raw samples into the output chunk: min/max over
// the non-missing values, missing vertices flattened to 0.
func normalize(chunkX, chunkZ, resolution int, raw []float64) *TerrainChunk {
	missing := float64(srtm.MissingValue)

	c := &TerrainChunk{
		ChunkX:     chunkX,
		ChunkZ:     chunkZ,
		Resolution: resolution,
		Heights:    make([]float32, len(raw)),
	}

	found := false
	for i, v := range raw {
		if v == missing {
			c.Heights[i] = 0
			continue
		}
		c.Heights[i] = float32(v)
		if !found || v < c.MinElevation {
			c.MinElevation = v
		}
		if !found || v > c.MaxElevation {
			c.MaxElevation = v
		}
		found = true
	}
	if !found {
		c.MinElevation, c.MaxElevation = 0, 0
	}
	return c
}
