package chunks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/terrainworks/worldapi/internal/models"
)

// SeedRepo is the metadata surface the seeder needs.
type SeedRepo interface {
	HasChunks(ctx context.Context, version string) (bool, error)
	UpsertReady(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int, objectKey, checksum string) error
}

// ActiveVersions lists the versions to seed.
type ActiveVersions interface {
	GetActiveVersions() []models.WorldVersion
}

// Seeder publishes the flat anchor chunk at (0,0) for every active
// world version that has no chunks yet, fixing the world-to-earth
// mapping before any client request arrives.
type Seeder struct {
	versions ActiveVersions
	writer   ObjectWriter
	metadata SeedRepo
}

// NewSeeder wires the anchor seeder.
func NewSeeder(versions ActiveVersions, writer ObjectWriter, metadata SeedRepo) *Seeder {
	return &Seeder{versions: versions, writer: writer, metadata: metadata}
}

// Seed runs once at startup. Re-running observes the existing rows
// and does nothing.
func (s *Seeder) Seed(ctx context.Context) error {
	for _, version := range s.versions.GetActiveVersions() {
		seeded, err := s.seedVersion(ctx, version.Version)
		if err != nil {
			return fmt.Errorf("chunks: seed anchor for %q: %w", version.Version, err)
		}
		if seeded {
			slog.Info("anchor chunk seeded", "world_version", version.Version)
		}
	}
	return nil
}

func (s *Seeder) seedVersion(ctx context.Context, version string) (bool, error) {
	has, err := s.metadata.HasChunks(ctx, version)
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}

	anchor := NewAnchorChunk()
	objectKey := ObjectKeyForChunk(version, anchor.Resolution, anchor.ChunkX, anchor.ChunkZ)
	result, err := s.writer.Write(ctx, anchor, objectKey)
	if err != nil {
		return false, err
	}
	if err := s.metadata.UpsertReady(ctx, version, anchor.ChunkX, anchor.ChunkZ, models.LayerTerrain, anchor.Resolution, result.ObjectKey, result.Checksum); err != nil {
		return false, err
	}
	return true, nil
}
