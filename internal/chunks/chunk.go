// Package chunks fabricates, serializes, publishes, and coordinates
// terrain heightmap chunks.
package chunks

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange indicates a structurally invalid chunk request.
	ErrOutOfRange = errors.New("chunks: out of range")
	// ErrInvariant indicates an internal inconsistency, e.g. a heights
	// slice that does not match the resolution.
	ErrInvariant = errors.New("chunks: invariant violation")
	// ErrUnsupportedVersion indicates chunk bytes whose version byte is
	// not FormatVersion.
	ErrUnsupportedVersion = errors.New("chunks: unsupported format version")
	// ErrSizeMismatch indicates chunk bytes whose length contradicts
	// their header.
	ErrSizeMismatch = errors.New("chunks: payload size mismatch")
)

// TerrainChunk is one fabricated heightmap. Heights hold absolute
// elevation in meters at heights[z*(R+1)+x]; vertices on a chunk edge
// are shared bit-identically with the adjacent chunk.
type TerrainChunk struct {
	ChunkX     int
	ChunkZ     int
	Resolution int

	// Heights has (Resolution+1)² entries, row-major by z.
	Heights []float32

	MinElevation float64
	MaxElevation float64
}

// GridSize is the number of vertices per side.
func (c *TerrainChunk) GridSize() int { return c.Resolution + 1 }

// Validate checks the structural invariants.
func (c *TerrainChunk) Validate() error {
	if c.Resolution < 1 {
		return fmt.Errorf("%w: resolution %d", ErrOutOfRange, c.Resolution)
	}
	if want := c.GridSize() * c.GridSize(); len(c.Heights) != want {
		return fmt.Errorf("%w: %d heights for resolution %d (want %d)", ErrInvariant, len(c.Heights), c.Resolution, want)
	}
	return nil
}

// NewAnchorChunk builds the flat seed chunk that fixes the
// world-to-earth mapping for a fresh world version.
func NewAnchorChunk() *TerrainChunk {
	return &TerrainChunk{
		ChunkX:     0,
		ChunkZ:     0,
		Resolution: 2,
		Heights:    make([]float32, 9),
	}
}
