package chunks

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terrainworks/worldapi/internal/models"
	"github.com/terrainworks/worldapi/internal/world"
)

// Repository persists chunk metadata in world_chunks.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps the shared pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) worldVersionID(ctx context.Context, version string) (int32, error) {
	var id int32
	err := r.pool.QueryRow(ctx, `SELECT id FROM world_versions WHERE version = $1`, version).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", world.ErrUnknownVersion, version)
	}
	if err != nil {
		return 0, fmt.Errorf("chunks: resolve world version %q: %w", version, err)
	}
	return id, nil
}

const upsertReadySQL = `
INSERT INTO world_chunks (world_version_id, chunk_x, chunk_z, layer, resolution, s3_key, checksum, status, generated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'ready', NOW())
ON CONFLICT (world_version_id, chunk_x, chunk_z, layer, resolution)
DO UPDATE SET s3_key = EXCLUDED.s3_key,
              checksum = EXCLUDED.checksum,
              status = 'ready',
              generated_at = NOW()
`

// UpsertReady commits a fabricated chunk as ready. Chunk content is
// deterministic, so concurrent fabrications of the same key converge
// on the same object key and checksum; the upsert is retry-safe.
func (r *Repository) UpsertReady(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int, objectKey, checksum string) error {
	id, err := r.worldVersionID(ctx, version)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, upsertReadySQL, id, chunkX, chunkZ, layer, resolution, objectKey, checksum); err != nil {
		return fmt.Errorf("chunks: upsert chunk (%d,%d) r%d: %w", chunkX, chunkZ, resolution, err)
	}
	return nil
}

const getChunkSQL = `
SELECT chunk_x, chunk_z, layer, resolution, world_version_id, s3_key, checksum, status, generated_at
FROM world_chunks
WHERE world_version_id = $1 AND chunk_x = $2 AND chunk_z = $3 AND layer = $4 AND resolution = $5
`

// Get returns the metadata row, or nil when no row exists.
func (r *Repository) Get(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int) (*models.ChunkMetadata, error) {
	id, err := r.worldVersionID(ctx, version)
	if err != nil {
		return nil, err
	}

	var m models.ChunkMetadata
	err = r.pool.QueryRow(ctx, getChunkSQL, id, chunkX, chunkZ, layer, resolution).Scan(
		&m.ChunkX, &m.ChunkZ, &m.Layer, &m.Resolution, &m.WorldVersionID,
		&m.S3Key, &m.Checksum, &m.Status, &m.GeneratedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chunks: get chunk (%d,%d) r%d: %w", chunkX, chunkZ, resolution, err)
	}
	return &m, nil
}

// IsReady reports whether a ready row exists for the key.
func (r *Repository) IsReady(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int) (bool, error) {
	m, err := r.Get(ctx, version, chunkX, chunkZ, layer, resolution)
	if err != nil {
		return false, err
	}
	return m != nil && m.Status == models.ChunkReady, nil
}

const hasChunksSQL = `
SELECT EXISTS (SELECT 1 FROM world_chunks WHERE world_version_id = $1)
`

// HasChunks reports whether any chunk row exists for the version.
// The anchor seeder uses it to detect a fresh world.
func (r *Repository) HasChunks(ctx context.Context, version string) (bool, error) {
	id, err := r.worldVersionID(ctx, version)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, hasChunksSQL, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("chunks: count chunks for %q: %w", version, err)
	}
	return exists, nil
}
