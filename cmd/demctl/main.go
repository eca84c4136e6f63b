// demctl is the admin CLI for the DEM ingestion pipeline: force-fetch
// a tile, inspect tile status, or reset a failed or stuck row so the
// download worker can pick it up again.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/terrainworks/worldapi/internal/config"
	"github.com/terrainworks/worldapi/internal/db"
	"github.com/terrainworks/worldapi/internal/dem"
	"github.com/terrainworks/worldapi/internal/models"
	"github.com/terrainworks/worldapi/internal/objectstore"
	"github.com/terrainworks/worldapi/internal/srtm"
)

var (
	flagVersion string
	flagTile    string
	flagStatus  string
)

func main() {
	root := &cobra.Command{
		Use:   "demctl",
		Short: "Administer DEM tile ingestion",
	}
	root.PersistentFlags().StringVar(&flagVersion, "version", "", "world version (required)")

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Force-fetch one tile through the ingestion pipeline",
		RunE:  runFetch,
	}
	fetchCmd.Flags().StringVar(&flagTile, "tile", "", "tile key, e.g. N46W113 (required)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List DEM tile rows for a world version",
		RunE:  runStatus,
	}
	statusCmd.Flags().StringVar(&flagStatus, "status", "", "filter by status (missing|downloading|ready|failed)")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Return a failed or stuck tile row to missing",
		RunE:  runReset,
	}
	resetCmd.Flags().StringVar(&flagTile, "tile", "", "tile key, e.g. N46W113 (required)")

	root.AddCommand(fetchCmd, statusCmd, resetCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

type env struct {
	cfg     *config.Config
	db      *db.DB
	repo    *dem.Repository
	store   *dem.Store
	fetcher *dem.Fetcher
}

func setup(ctx context.Context) (*env, error) {
	if flagVersion == "" {
		return nil, fmt.Errorf("--version is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	database, err := db.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	objects, err := objectstore.NewS3(ctx, cfg.S3.Bucket, cfg.S3.Region)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("initialize object store: %w", err)
	}

	return &env{
		cfg:     cfg,
		db:      database,
		repo:    dem.NewRepository(database.Pool),
		store:   dem.NewStore(objects),
		fetcher: dem.NewFetcher(cfg.Dem.SourceBaseURL),
	}, nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	if flagTile == "" {
		return fmt.Errorf("--tile is required")
	}
	if _, err := srtm.ParseTileName(flagTile); err != nil {
		return fmt.Errorf("invalid tile key %q: %w", flagTile, err)
	}

	ctx := cmd.Context()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.db.Close()

	if _, err := e.repo.GetOrCreateMissing(ctx, flagVersion, flagTile); err != nil {
		return err
	}

	log.Printf("Fetching %s...", flagTile)
	data, err := e.fetcher.Fetch(ctx, flagTile)
	if err != nil {
		if markErr := e.repo.MarkFailed(ctx, flagVersion, flagTile, err.Error()); markErr != nil {
			log.Printf("Warning: could not record failure: %v", markErr)
		}
		return err
	}
	log.Printf("Downloaded %s", humanize.Bytes(uint64(len(data))))

	if _, _, _, err := srtm.Decode(data); err != nil {
		if markErr := e.repo.MarkFailed(ctx, flagVersion, flagTile, err.Error()); markErr != nil {
			log.Printf("Warning: could not record failure: %v", markErr)
		}
		return fmt.Errorf("tile payload invalid: %w", err)
	}

	objectKey, err := e.store.WriteTile(ctx, flagTile, data)
	if err != nil {
		return err
	}
	if err := e.repo.MarkReady(ctx, flagVersion, flagTile, objectKey); err != nil {
		return err
	}

	log.Printf("Tile %s ready at %s", flagTile, objectKey)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.db.Close()

	statuses := []models.DemTileStatus{models.DemTileMissing, models.DemTileDownloading, models.DemTileReady, models.DemTileFailed}
	if flagStatus != "" {
		statuses = []models.DemTileStatus{models.DemTileStatus(flagStatus)}
	}

	for _, status := range statuses {
		rows, err := e.repo.ListByStatus(ctx, flagVersion, status, 100)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%d):\n", status, len(rows))
		for _, row := range rows {
			line := fmt.Sprintf("  %s  updated %s", row.TileKey, row.UpdatedAt.Format("2006-01-02 15:04:05"))
			if row.LastError != nil {
				line += "  error: " + *row.LastError
			}
			fmt.Println(line)
		}
	}
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	if flagTile == "" {
		return fmt.Errorf("--tile is required")
	}

	ctx := cmd.Context()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.db.Close()

	reset, err := e.repo.Reset(ctx, flagVersion, flagTile)
	if err != nil {
		return err
	}
	if !reset {
		return fmt.Errorf("tile %s is not in a resettable state (failed or downloading)", flagTile)
	}
	log.Printf("Tile %s returned to missing; the download worker will retry it", flagTile)
	return nil
}
