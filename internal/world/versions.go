// Package world caches the active world versions so request paths
// never touch the database for a version lookup.
package world

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terrainworks/worldapi/internal/models"
)

// ErrUnknownVersion reports a version string with no active
// world_versions row behind it. Callers surface it as not-found.
var ErrUnknownVersion = errors.New("world: unknown world version")

// VersionCache is a snapshot of active world versions, loaded at
// startup and refreshable. Lookups are constant-time and lock-cheap.
type VersionCache struct {
	pool *pgxpool.Pool

	mu        sync.RWMutex
	byVersion map[string]models.WorldVersion
	ordered   []models.WorldVersion
}

// NewVersionCache builds an empty cache; call Refresh before serving.
func NewVersionCache(pool *pgxpool.Pool) *VersionCache {
	return &VersionCache{pool: pool, byVersion: make(map[string]models.WorldVersion)}
}

const activeVersionsSQL = `
SELECT id, version, is_active
FROM world_versions
WHERE is_active
ORDER BY version
`

// Refresh reloads the snapshot from the database.
func (c *VersionCache) Refresh(ctx context.Context) error {
	rows, err := c.pool.Query(ctx, activeVersionsSQL)
	if err != nil {
		return fmt.Errorf("world: load active versions: %w", err)
	}
	defer rows.Close()

	byVersion := make(map[string]models.WorldVersion)
	var ordered []models.WorldVersion
	for rows.Next() {
		var v models.WorldVersion
		if err := rows.Scan(&v.ID, &v.Version, &v.IsActive); err != nil {
			return fmt.Errorf("world: scan version row: %w", err)
		}
		byVersion[v.Version] = v
		ordered = append(ordered, v)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("world: read version rows: %w", err)
	}

	c.mu.Lock()
	c.byVersion = byVersion
	c.ordered = ordered
	c.mu.Unlock()
	return nil
}

// GetWorldVersion returns the active version record, or nil if the
// string names no active version.
func (c *VersionCache) GetWorldVersion(version string) *models.WorldVersion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.byVersion[version]; ok {
		copied := v
		return &copied
	}
	return nil
}

// GetActiveVersions returns the snapshot.
func (c *VersionCache) GetActiveVersions() []models.WorldVersion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.WorldVersion, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// SetForTesting replaces the snapshot without a database.
func (c *VersionCache) SetForTesting(versions []models.WorldVersion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byVersion = make(map[string]models.WorldVersion, len(versions))
	c.ordered = append([]models.WorldVersion(nil), versions...)
	for _, v := range versions {
		c.byVersion[v.Version] = v
	}
}
