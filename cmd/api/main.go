// Terrain World API
//
// HTTP service that fabricates and serves streamed, chunked 3D
// terrain built from SRTM elevation data. Chunks are generated on
// demand, published to the object store, and tracked in Postgres;
// DEM tiles are ingested by a background download worker.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/terrainworks/worldapi/internal/cache"
	"github.com/terrainworks/worldapi/internal/chunks"
	"github.com/terrainworks/worldapi/internal/config"
	"github.com/terrainworks/worldapi/internal/db"
	"github.com/terrainworks/worldapi/internal/dem"
	"github.com/terrainworks/worldapi/internal/geodesy"
	"github.com/terrainworks/worldapi/internal/handlers"
	custommw "github.com/terrainworks/worldapi/internal/middleware"
	"github.com/terrainworks/worldapi/internal/objectstore"
	"github.com/terrainworks/worldapi/internal/world"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	database, err := db.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Database connection established")

	// Initialize object store
	objects, err := objectstore.NewS3(ctx, cfg.S3.Bucket, cfg.S3.Region)
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}

	// World-version snapshot
	versions := world.NewVersionCache(database.Pool)
	if err := versions.Refresh(ctx); err != nil {
		log.Fatalf("Failed to load world versions: %v", err)
	}

	// DEM pipeline singletons
	index := dem.NewIndex()
	demStore := dem.NewStore(objects)
	fetcher := dem.NewFetcher(cfg.Dem.SourceBaseURL)
	demRepo := dem.NewRepository(database.Pool)
	resolver := dem.NewResolver(index, fetcher, demStore)
	tileCache := dem.NewTileCache(demStore)

	// Chunk pipeline
	mapper := geodesy.NewMapper(cfg.World.OriginLat, cfg.World.OriginLon, cfg.World.ChunkSizeMeters, cfg.World.MetersPerDegreeLat)
	sampler := chunks.NewSampler(mapper, resolver, tileCache)
	writer := chunks.NewWriter(objects)
	chunkRepo := chunks.NewRepository(database.Pool)
	coordinator := chunks.NewCoordinator(ctx, versions, mapper, demRepo, sampler, writer, chunkRepo, cfg.Dem.DBWriteConcurrency)

	// Optional Redis status cache
	if cfg.Redis.URL != "" {
		statusCache, err := cache.New(cfg.Redis.URL)
		if err != nil {
			log.Printf("Warning: Redis cache initialization failed: %v - caching disabled", err)
		} else {
			coordinator.SetStatusCache(statusCache)
			defer statusCache.Close()
		}
	}

	// Startup sequence: index existing tiles, seed anchors, start the
	// download worker.
	if err := dem.InitializeIndex(ctx, demStore, index); err != nil {
		log.Fatalf("Failed to initialize DEM index: %v", err)
	}
	seeder := chunks.NewSeeder(versions, writer, chunkRepo)
	if err := seeder.Seed(ctx); err != nil {
		log.Fatalf("Failed to seed anchor chunks: %v", err)
	}
	worker := dem.NewWorker(demRepo, fetcher, demStore, index, versions, cfg.Dem.PollInterval, cfg.Dem.StaleClaimAfter)
	worker.Start(ctx)

	// Handlers
	h := handlers.New(coordinator, objects, demRepo, versions, func(ctx context.Context) error {
		return database.Pool.Ping(ctx)
	})

	// Setup router
	r := chi.NewRouter()
	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)
	r.Use(custommw.Logger)
	r.Use(custommw.Recoverer)
	r.Use(custommw.Timeout(30 * time.Second))
	r.Use(custommw.SecurityHeaders)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1/worlds", func(r chi.Router) {
		r.Get("/", h.GetWorlds)
		r.Get("/{version}/chunks/{x}/{z}", h.GetChunk)
		r.Get("/{version}/chunks/{x}/{z}/status", h.GetChunkStatus)
		r.Get("/{version}/dem/status", h.GetDemStatus)
	})

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s:%s (environment: %s)", cfg.Server.Host, cfg.Server.Port, cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Stop background work: the download worker exits at its next
	// poll boundary; in-flight fabrication tasks are allowed to
	// finish their commits.
	worker.Stop()
	coordinator.Wait()
	cancel()

	log.Println("Server exited")
}
