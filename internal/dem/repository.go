package dem

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terrainworks/worldapi/internal/models"
	"github.com/terrainworks/worldapi/internal/world"
)

// Repository drives the dem_tiles state machine. Every method is
// scoped by (world version, tile key); world versions are resolved
// strictly.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps the shared pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const resolveWorldVersionSQL = `
SELECT id FROM world_versions WHERE version = $1
`

func (r *Repository) worldVersionID(ctx context.Context, version string) (int32, error) {
	var id int32
	err := r.pool.QueryRow(ctx, resolveWorldVersionSQL, version).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", world.ErrUnknownVersion, version)
	}
	if err != nil {
		return 0, fmt.Errorf("dem: resolve world version %q: %w", version, err)
	}
	return id, nil
}

const getOrCreateMissingSQL = `
INSERT INTO dem_tiles (world_version_id, tile_key, status, created_at, updated_at)
VALUES ($1, $2, 'missing', NOW(), NOW())
ON CONFLICT (world_version_id, tile_key)
DO UPDATE SET updated_at = NOW()
RETURNING id, world_version_id, tile_key, status, s3_key, last_error, created_at, updated_at
`

// GetOrCreateMissing upserts the tile row in status "missing" and
// returns the current row. Concurrent callers converge on one row;
// an existing row keeps its status and only bumps updated_at.
func (r *Repository) GetOrCreateMissing(ctx context.Context, version, tileKey string) (*models.DemTile, error) {
	id, err := r.worldVersionID(ctx, version)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, getOrCreateMissingSQL, id, tileKey)
	return scanDemTile(row)
}

const tryClaimSQL = `
UPDATE dem_tiles
SET status = 'downloading', updated_at = NOW()
WHERE world_version_id = $1 AND tile_key = $2 AND status = 'missing'
`

// TryClaim atomically moves the row missing → downloading. Exactly
// one concurrent caller wins; the rest observe false.
func (r *Repository) TryClaim(ctx context.Context, version, tileKey string) (bool, error) {
	id, err := r.worldVersionID(ctx, version)
	if err != nil {
		return false, err
	}
	tag, err := r.pool.Exec(ctx, tryClaimSQL, id, tileKey)
	if err != nil {
		return false, fmt.Errorf("dem: claim tile %s: %w", tileKey, err)
	}
	return tag.RowsAffected() == 1, nil
}

const markReadySQL = `
UPDATE dem_tiles
SET status = 'ready', s3_key = $3, last_error = NULL, updated_at = NOW()
WHERE world_version_id = $1 AND tile_key = $2
`

// MarkReady records a successful download.
func (r *Repository) MarkReady(ctx context.Context, version, tileKey, objectKey string) error {
	id, err := r.worldVersionID(ctx, version)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, markReadySQL, id, tileKey, objectKey); err != nil {
		return fmt.Errorf("dem: mark tile %s ready: %w", tileKey, err)
	}
	return nil
}

const markFailedSQL = `
UPDATE dem_tiles
SET status = 'failed', last_error = $3, updated_at = NOW()
WHERE world_version_id = $1 AND tile_key = $2
`

// MarkFailed records a terminal failure; the object key, if any, is
// left untouched.
func (r *Repository) MarkFailed(ctx context.Context, version, tileKey, cause string) error {
	id, err := r.worldVersionID(ctx, version)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, markFailedSQL, id, tileKey, cause); err != nil {
		return fmt.Errorf("dem: mark tile %s failed: %w", tileKey, err)
	}
	return nil
}

const getStatusSQL = `
SELECT id, world_version_id, tile_key, status, s3_key, last_error, created_at, updated_at
FROM dem_tiles
WHERE world_version_id = $1 AND tile_key = $2
`

// GetStatus returns the row for (version, tileKey), or nil if none
// exists yet.
func (r *Repository) GetStatus(ctx context.Context, version, tileKey string) (*models.DemTile, error) {
	id, err := r.worldVersionID(ctx, version)
	if err != nil {
		return nil, err
	}
	tile, err := scanDemTile(r.pool.QueryRow(ctx, getStatusSQL, id, tileKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return tile, err
}

const listByStatusSQL = `
SELECT id, world_version_id, tile_key, status, s3_key, last_error, created_at, updated_at
FROM dem_tiles
WHERE world_version_id = $1 AND status = $2
ORDER BY created_at ASC
LIMIT $3
`

// ListByStatus returns up to limit rows in the given status, oldest
// first.
func (r *Repository) ListByStatus(ctx context.Context, version string, status models.DemTileStatus, limit int) ([]models.DemTile, error) {
	id, err := r.worldVersionID(ctx, version)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, listByStatusSQL, id, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("dem: list %s tiles: %w", status, err)
	}
	defer rows.Close()

	var tiles []models.DemTile
	for rows.Next() {
		tile, err := scanDemTile(rows)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, *tile)
	}
	return tiles, rows.Err()
}

const demoteStaleSQL = `
UPDATE dem_tiles
SET status = 'missing', updated_at = NOW()
WHERE world_version_id = $1 AND tile_key = $2
  AND status = 'downloading' AND updated_at < NOW() - make_interval(secs => $3)
`

// DemoteStale returns an orphaned "downloading" row to "missing" if
// its claim is older than the stale window. The atomic claim only
// moves missing → downloading, so without this a crashed worker's
// claim would pin the tile forever.
func (r *Repository) DemoteStale(ctx context.Context, version, tileKey string, olderThan time.Duration) (bool, error) {
	id, err := r.worldVersionID(ctx, version)
	if err != nil {
		return false, err
	}
	tag, err := r.pool.Exec(ctx, demoteStaleSQL, id, tileKey, olderThan.Seconds())
	if err != nil {
		return false, fmt.Errorf("dem: demote stale tile %s: %w", tileKey, err)
	}
	return tag.RowsAffected() == 1, nil
}

const resetSQL = `
UPDATE dem_tiles
SET status = 'missing', last_error = NULL, updated_at = NOW()
WHERE world_version_id = $1 AND tile_key = $2 AND status IN ('failed', 'downloading')
`

// Reset manually returns a failed or stuck row to "missing". Used by
// the admin CLI; the worker never retries failed tiles on its own.
func (r *Repository) Reset(ctx context.Context, version, tileKey string) (bool, error) {
	id, err := r.worldVersionID(ctx, version)
	if err != nil {
		return false, err
	}
	tag, err := r.pool.Exec(ctx, resetSQL, id, tileKey)
	if err != nil {
		return false, fmt.Errorf("dem: reset tile %s: %w", tileKey, err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanDemTile(row pgx.Row) (*models.DemTile, error) {
	var t models.DemTile
	err := row.Scan(&t.ID, &t.WorldVersionID, &t.TileKey, &t.Status, &t.S3Key, &t.LastError, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
