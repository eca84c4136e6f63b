package chunks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/terrainworks/worldapi/internal/geodesy"
	"github.com/terrainworks/worldapi/internal/models"
	"github.com/terrainworks/worldapi/internal/srtm"
	"github.com/terrainworks/worldapi/internal/world"
)

// Status is the externally visible state of a chunk.
type Status string

const (
	StatusNotFound Status = "not_found"
	StatusPending  Status = "pending"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

// DemTileNotReadyError refuses chunk fabrication because the gating
// DEM tile has not been ingested yet. The missing row has been
// recorded, so the download worker will pick the tile up; clients
// poll and retry.
type DemTileNotReadyError struct {
	TileKey string
	Status  models.DemTileStatus
}

func (e *DemTileNotReadyError) Error() string {
	return fmt.Sprintf("chunks: DEM tile %s not ready (status %s)", e.TileKey, e.Status)
}

// MetadataRepo is the slice of the chunk repository the coordinator
// needs.
type MetadataRepo interface {
	Get(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int) (*models.ChunkMetadata, error)
	UpsertReady(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int, objectKey, checksum string) error
}

// DemGate creates-or-reads the DEM row gating a chunk.
type DemGate interface {
	GetOrCreateMissing(ctx context.Context, version, tileKey string) (*models.DemTile, error)
}

// ChunkSampler fabricates heightmaps.
type ChunkSampler interface {
	Sample(ctx context.Context, chunkX, chunkZ, resolution int) (*TerrainChunk, error)
}

// ObjectWriter publishes serialized chunks.
type ObjectWriter interface {
	Write(ctx context.Context, chunk *TerrainChunk, objectKey string) (*WriteResult, error)
}

// VersionLookup resolves world version strings.
type VersionLookup interface {
	GetWorldVersion(version string) *models.WorldVersion
}

// StatusCache is an optional read-through cache for status lookups.
type StatusCache interface {
	GetStatus(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int) (Status, bool)
	SetStatus(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int, status Status)
	Invalidate(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int)
}

// Coordinator is the chunk control plane: status lookups, the DEM
// readiness gate, and fire-and-forget fabrication with a two-phase
// publish (object upload before metadata commit).
type Coordinator struct {
	versions VersionLookup
	mapper   *geodesy.Mapper
	demGate  DemGate
	sampler  ChunkSampler
	writer   ObjectWriter
	metadata MetadataRepo
	cache    StatusCache // may be nil

	// dbWrites bounds concurrent metadata commits; it is the
	// backpressure control protecting the connection pool from a
	// burst of finishing fabrication tasks.
	dbWrites *semaphore.Weighted

	// baseCtx governs detached fabrication tasks. Request-scoped
	// cancellation must not abort work that was already scheduled.
	baseCtx context.Context

	tasks sync.WaitGroup
}

// NewCoordinator wires the control plane. dbWriteBound must be ≥ 1.
func NewCoordinator(baseCtx context.Context, versions VersionLookup, mapper *geodesy.Mapper, demGate DemGate, sampler ChunkSampler, writer ObjectWriter, metadata MetadataRepo, dbWriteBound int64) *Coordinator {
	if dbWriteBound < 1 {
		dbWriteBound = 1
	}
	return &Coordinator{
		versions: versions,
		mapper:   mapper,
		demGate:  demGate,
		sampler:  sampler,
		writer:   writer,
		metadata: metadata,
		dbWrites: semaphore.NewWeighted(dbWriteBound),
		baseCtx:  baseCtx,
	}
}

// SetStatusCache installs the optional redis-backed status cache.
func (c *Coordinator) SetStatusCache(cache StatusCache) {
	c.cache = cache
}

// GetChunkStatus reports the chunk's metadata state. It never touches
// the object store.
func (c *Coordinator) GetChunkStatus(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int) (Status, error) {
	if c.versions.GetWorldVersion(version) == nil {
		return StatusNotFound, fmt.Errorf("%w: %q", world.ErrUnknownVersion, version)
	}

	if c.cache != nil {
		if status, ok := c.cache.GetStatus(ctx, version, chunkX, chunkZ, layer, resolution); ok {
			return status, nil
		}
	}

	m, err := c.metadata.Get(ctx, version, chunkX, chunkZ, layer, resolution)
	if err != nil {
		return StatusNotFound, err
	}

	status := StatusNotFound
	if m != nil {
		switch m.Status {
		case models.ChunkReady:
			status = StatusReady
		case models.ChunkPending:
			status = StatusPending
		case models.ChunkFailed:
			status = StatusFailed
		}
	}

	if c.cache != nil {
		c.cache.SetStatus(ctx, version, chunkX, chunkZ, layer, resolution, status)
	}
	return status, nil
}

// GetChunkMetadata returns the raw metadata row, or nil.
func (c *Coordinator) GetChunkMetadata(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int) (*models.ChunkMetadata, error) {
	if c.versions.GetWorldVersion(version) == nil {
		return nil, fmt.Errorf("%w: %q", world.ErrUnknownVersion, version)
	}
	return c.metadata.Get(ctx, version, chunkX, chunkZ, layer, resolution)
}

// IsDemReadyForChunk reports whether the DEM tile under the chunk's
// origin is ingested, along with the tile key.
func (c *Coordinator) IsDemReadyForChunk(ctx context.Context, version string, chunkX, chunkZ int) (bool, string, error) {
	lat, lon := c.mapper.GetChunkOriginLatLon(chunkX, chunkZ)
	tileKey, err := srtm.ComputeTileName(lat, lon)
	if err != nil {
		return false, "", err
	}
	row, err := c.demGate.GetOrCreateMissing(ctx, version, tileKey)
	if err != nil {
		return false, tileKey, err
	}
	return row.Status == models.DemTileReady, tileKey, nil
}

// TriggerGeneration starts chunk fabrication if the chunk does not
// already exist and its DEM tile is ready.
//
// The DEM gate is deliberately non-blocking: for a brand-new region
// this call records the missing DEM row (which the download worker
// will claim) and fails with DemTileNotReadyError; it never waits for
// the download. The fabrication task itself is detached; its errors
// are logged, never surfaced to the caller that scheduled it.
func (c *Coordinator) TriggerGeneration(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int) error {
	if resolution < 1 {
		return fmt.Errorf("%w: resolution %d", ErrOutOfRange, resolution)
	}
	if c.versions.GetWorldVersion(version) == nil {
		return fmt.Errorf("%w: %q", world.ErrUnknownVersion, version)
	}

	m, err := c.metadata.Get(ctx, version, chunkX, chunkZ, layer, resolution)
	if err != nil {
		return err
	}
	if m != nil && m.Status == models.ChunkReady {
		return nil
	}

	lat, lon := c.mapper.GetChunkOriginLatLon(chunkX, chunkZ)
	tileKey, err := srtm.ComputeTileName(lat, lon)
	if err != nil {
		return err
	}
	row, err := c.demGate.GetOrCreateMissing(ctx, version, tileKey)
	if err != nil {
		return err
	}
	if row.Status != models.DemTileReady {
		return &DemTileNotReadyError{TileKey: tileKey, Status: row.Status}
	}

	c.tasks.Add(1)
	go c.fabricate(version, chunkX, chunkZ, layer, resolution)
	return nil
}

// fabricate runs one detached generation task: sample, publish the
// object, then commit metadata under the write semaphore. The order
// is load-bearing: a reader that observes a ready row must find the
// object bytes behind it.
func (c *Coordinator) fabricate(version string, chunkX, chunkZ int, layer string, resolution int) {
	defer c.tasks.Done()
	ctx := c.baseCtx

	logger := slog.With(
		"world_version", version,
		"chunk_x", chunkX,
		"chunk_z", chunkZ,
		"layer", layer,
		"resolution", resolution,
	)

	chunk, err := c.sampler.Sample(ctx, chunkX, chunkZ, resolution)
	if err != nil {
		logger.Error("chunk fabrication failed", "stage", "sample", "error", err)
		return
	}

	objectKey := ObjectKeyForChunk(version, resolution, chunkX, chunkZ)
	result, err := c.writer.Write(ctx, chunk, objectKey)
	if err != nil {
		logger.Error("chunk fabrication failed", "stage", "upload", "error", err)
		return
	}

	if err := c.dbWrites.Acquire(ctx, 1); err != nil {
		logger.Error("chunk fabrication failed", "stage", "commit", "error", err)
		return
	}
	err = c.metadata.UpsertReady(ctx, version, chunkX, chunkZ, layer, resolution, result.ObjectKey, result.Checksum)
	c.dbWrites.Release(1)
	if err != nil {
		logger.Error("chunk fabrication failed", "stage", "commit", "error", err)
		return
	}

	if c.cache != nil {
		c.cache.Invalidate(ctx, version, chunkX, chunkZ, layer, resolution)
	}
	logger.Info("chunk published", "object_key", result.ObjectKey, "checksum", result.Checksum)
}

// Wait blocks until all scheduled fabrication tasks have finished.
// Used in tests and during shutdown.
func (c *Coordinator) Wait() {
	c.tasks.Wait()
}
