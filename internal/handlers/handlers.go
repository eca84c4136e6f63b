// Package handlers provides the HTTP handlers for the terrain API.
//
// # Handler Pattern
//
// Every handler follows the same structure:
//
//  1. Extract URL parameters: chi.URLParam(r, "version")
//  2. Parse and validate query parameters
//  3. Execute business logic via the injected services
//  4. Return a response: RespondJSON / the error helpers
//
// # File Organization
//
//   - handlers.go: Handlers struct, service wiring, health check
//   - chunks.go: chunk delivery and status endpoints
//   - dem.go: DEM tile status endpoint
//   - worlds.go: world version listing
package handlers

import (
	"context"
	"net/http"

	"github.com/terrainworks/worldapi/internal/chunks"
	"github.com/terrainworks/worldapi/internal/models"
)

// ChunkService is the coordinator surface the chunk endpoints use.
type ChunkService interface {
	GetChunkStatus(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int) (chunks.Status, error)
	GetChunkMetadata(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int) (*models.ChunkMetadata, error)
	TriggerGeneration(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int) error
}

// ObjectFetcher reads stored chunk bytes for direct delivery.
type ObjectFetcher interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// DemStatusService answers (and implicitly enqueues) DEM tile status.
type DemStatusService interface {
	GetOrCreateMissing(ctx context.Context, version, tileKey string) (*models.DemTile, error)
}

// VersionService lists and resolves world versions.
type VersionService interface {
	GetWorldVersion(version string) *models.WorldVersion
	GetActiveVersions() []models.WorldVersion
}

// Handlers holds all HTTP handlers.
type Handlers struct {
	chunks   ChunkService
	objects  ObjectFetcher
	dem      DemStatusService
	versions VersionService
	ping     func(ctx context.Context) error
}

// New creates a new handlers instance.
func New(chunks ChunkService, objects ObjectFetcher, dem DemStatusService, versions VersionService, ping func(ctx context.Context) error) *Handlers {
	return &Handlers{
		chunks:   chunks,
		objects:  objects,
		dem:      dem,
		versions: versions,
		ping:     ping,
	}
}

// HealthCheck reports service and database health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			RespondError(w, r, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	RespondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
