// Package config binds environment variables (and an optional .env
// file) into the typed configuration the binaries share.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	S3       S3Config
	Redis    RedisConfig
	World    WorldConfig
	Dem      DemConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Host        string
	Port        string
	Environment string
}

type DatabaseConfig struct {
	URL      string
	MaxConns int32
}

type S3Config struct {
	Bucket string
	Region string
}

type RedisConfig struct {
	// URL enables the optional status cache when non-empty.
	URL string
}

// WorldConfig anchors the flat-earth plane.
type WorldConfig struct {
	OriginLat          float64
	OriginLon          float64
	ChunkSizeMeters    float64
	MetersPerDegreeLat float64
}

// DemConfig tunes the DEM ingestion pipeline and the chunk pipeline's
// write-side backpressure.
type DemConfig struct {
	// SourceBaseURL is the public dataset root the fetcher GETs from.
	SourceBaseURL string
	// PollInterval is the download worker tick.
	PollInterval time.Duration
	// StaleClaimAfter demotes orphaned "downloading" rows back to
	// "missing" once they are older than this.
	StaleClaimAfter time.Duration
	// DBWriteConcurrency bounds concurrent chunk metadata commits.
	DBWriteConcurrency int64
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads .env (if present) and the environment. DATABASE_URL and
// S3_BUCKET are required; everything else has a default.
func Load() (*Config, error) {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:        envOr("SERVER_HOST", "0.0.0.0"),
			Port:        envOr("SERVER_PORT", "8080"),
			Environment: envOr("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: int32(envOrInt("DATABASE_MAX_CONNS", 10)),
		},
		S3: S3Config{
			Bucket: os.Getenv("S3_BUCKET"),
			Region: envOr("AWS_REGION", "us-east-1"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		World: WorldConfig{
			OriginLat:          envOrFloat("WORLD_ORIGIN_LAT", 46.0),
			OriginLon:          envOrFloat("WORLD_ORIGIN_LON", -113.0),
			ChunkSizeMeters:    envOrFloat("WORLD_CHUNK_SIZE_METERS", 100),
			MetersPerDegreeLat: envOrFloat("WORLD_METERS_PER_DEGREE_LAT", 111320),
		},
		Dem: DemConfig{
			SourceBaseURL:      envOr("DEM_SOURCE_BASE_URL", "https://s3.amazonaws.com/elevation-tiles-prod/skadi"),
			PollInterval:       envOrDuration("DEM_POLL_INTERVAL", time.Second),
			StaleClaimAfter:    envOrDuration("DEM_STALE_CLAIM_AFTER", 10*time.Minute),
			DBWriteConcurrency: int64(envOrInt("CHUNK_DB_WRITE_CONCURRENCY", 8)),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(envOr("CORS_ALLOWED_ORIGINS", "*")),
		},
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.S3.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required")
	}
	if cfg.World.ChunkSizeMeters <= 0 {
		return nil, fmt.Errorf("WORLD_CHUNK_SIZE_METERS must be positive")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
