package dem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/terrainworks/worldapi/internal/models"
	"github.com/terrainworks/worldapi/internal/srtm"
)

const (
	missingBatchLimit     = 5
	downloadingBatchLimit = 2
)

// StatusRepository is the slice of the DEM repository the worker
// drives.
type StatusRepository interface {
	TryClaim(ctx context.Context, version, tileKey string) (bool, error)
	MarkReady(ctx context.Context, version, tileKey, objectKey string) error
	MarkFailed(ctx context.Context, version, tileKey, cause string) error
	ListByStatus(ctx context.Context, version string, status models.DemTileStatus, limit int) ([]models.DemTile, error)
	DemoteStale(ctx context.Context, version, tileKey string, olderThan time.Duration) (bool, error)
}

// VersionSource lists the world versions the worker serves.
type VersionSource interface {
	GetActiveVersions() []models.WorldVersion
}

// Worker is the background DEM downloader. On each tick it claims
// missing tiles per active world version, fetches them from the
// public dataset, persists them, and mutates the runtime index. All
// state lives in the database; the loop itself is stateless.
type Worker struct {
	repo     StatusRepository
	fetcher  FetchClient
	store    TileWriter
	index    *Index
	versions VersionSource

	interval   time.Duration
	staleAfter time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker builds a worker; Start must be called to run it.
func NewWorker(repo StatusRepository, fetcher FetchClient, store TileWriter, index *Index, versions VersionSource, interval, staleAfter time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Worker{
		repo:       repo,
		fetcher:    fetcher,
		store:      store,
		index:      index,
		versions:   versions,
		interval:   interval,
		staleAfter: staleAfter,
		stopChan:   make(chan struct{}),
	}
}

// Start launches the polling loop.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		slog.Info("dem download worker started", "interval", w.interval)
		for {
			select {
			case <-ctx.Done():
				slog.Info("dem download worker stopped", "reason", "context cancelled")
				return
			case <-w.stopChan:
				slog.Info("dem download worker stopped")
				return
			case <-ticker.C:
				w.tick(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for the current tick to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}

// tick runs one poll pass over every active world version.
func (w *Worker) tick(ctx context.Context) {
	for _, version := range w.versions.GetActiveVersions() {
		if err := w.pollVersion(ctx, version.Version); err != nil {
			slog.Error("dem poll failed", "world_version", version.Version, "error", err)
		}
	}
}

func (w *Worker) pollVersion(ctx context.Context, version string) error {
	candidates, err := w.repo.ListByStatus(ctx, version, models.DemTileMissing, missingBatchLimit)
	if err != nil {
		return fmt.Errorf("list missing: %w", err)
	}

	// Recovery path: reclaim downloads orphaned by a crashed worker.
	// Only rows older than the stale window demote; fresh claims are
	// someone else's live work.
	downloading, err := w.repo.ListByStatus(ctx, version, models.DemTileDownloading, downloadingBatchLimit)
	if err != nil {
		return fmt.Errorf("list downloading: %w", err)
	}
	for _, row := range downloading {
		demoted, err := w.repo.DemoteStale(ctx, version, row.TileKey, w.staleAfter)
		if err != nil {
			slog.Error("dem stale demotion failed", "world_version", version, "tile_key", row.TileKey, "error", err)
			continue
		}
		if demoted {
			slog.Warn("dem tile claim went stale, requeued", "world_version", version, "tile_key", row.TileKey)
			candidates = append(candidates, row)
		}
	}

	for _, row := range candidates {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopChan:
			return nil
		default:
		}

		won, err := w.repo.TryClaim(ctx, version, row.TileKey)
		if err != nil {
			slog.Error("dem claim failed", "world_version", version, "tile_key", row.TileKey, "error", err)
			continue
		}
		if !won {
			continue
		}
		w.processClaimed(ctx, version, row.TileKey)
	}
	return nil
}

// processClaimed advances one claimed tile to ready or failed.
func (w *Worker) processClaimed(ctx context.Context, version, tileKey string) {
	data, err := w.fetcher.Fetch(ctx, tileKey)
	if err != nil {
		w.fail(ctx, version, tileKey, err)
		return
	}

	if !validTileSize(len(data)) {
		w.fail(ctx, version, tileKey, fmt.Errorf("unexpected tile size %d bytes", len(data)))
		return
	}

	objectKey, err := w.store.WriteTile(ctx, tileKey, data)
	if err != nil {
		w.fail(ctx, version, tileKey, err)
		return
	}

	if err := w.repo.MarkReady(ctx, version, tileKey, objectKey); err != nil {
		w.fail(ctx, version, tileKey, err)
		return
	}

	descriptor, err := DescriptorForTile(tileKey)
	if err != nil {
		// Ready in the store but unindexable; should never happen for
		// a key that just passed the claim path.
		slog.Error("dem tile ready but name unparseable", "tile_key", tileKey, "error", err)
		return
	}
	w.index.Add(descriptor)

	slog.Info("dem tile downloaded",
		"world_version", version,
		"tile_key", tileKey,
		"object_key", objectKey,
		"size", humanize.Bytes(uint64(len(data))),
	)
}

func (w *Worker) fail(ctx context.Context, version, tileKey string, cause error) {
	var notFound *TileNotFoundError
	if errors.As(cause, &notFound) {
		slog.Warn("dem tile missing upstream", "world_version", version, "tile_key", tileKey)
	} else {
		slog.Error("dem tile download failed", "world_version", version, "tile_key", tileKey, "error", cause)
	}
	if err := w.repo.MarkFailed(ctx, version, tileKey, cause.Error()); err != nil {
		slog.Error("dem mark-failed failed", "world_version", version, "tile_key", tileKey, "error", err)
	}
}

func validTileSize(n int) bool {
	return n == 2*srtm.SamplesSRTM3*srtm.SamplesSRTM3 || n == 2*srtm.SamplesSRTM1*srtm.SamplesSRTM1
}
