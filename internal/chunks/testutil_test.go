package chunks

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/terrainworks/worldapi/internal/dem"
	"github.com/terrainworks/worldapi/internal/models"
	"github.com/terrainworks/worldapi/internal/objectstore"
	"github.com/terrainworks/worldapi/internal/srtm"
)

// memStore is an in-memory objectstore.Client.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(ctx context.Context, key string, body []byte, opts objectstore.PutOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), body...)
	s.puts++
	return etagOf(body), nil
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", objectstore.ErrNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

func (s *memStore) Head(ctx context.Context, key string) (*objectstore.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", objectstore.ErrNotFound, key)
	}
	return &objectstore.ObjectInfo{Key: key, ETag: etagOf(data), Size: int64(len(data))}, nil
}

func (s *memStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func etagOf(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// memMetadata is an in-memory chunk metadata repository.
type memMetadata struct {
	mu   sync.Mutex
	rows map[string]*models.ChunkMetadata
}

func newMemMetadata() *memMetadata {
	return &memMetadata{rows: make(map[string]*models.ChunkMetadata)}
}

func metaKey(version string, chunkX, chunkZ int, layer string, resolution int) string {
	return fmt.Sprintf("%s|%d|%d|%s|%d", version, chunkX, chunkZ, layer, resolution)
}

func (m *memMetadata) Get(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int) (*models.ChunkMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[metaKey(version, chunkX, chunkZ, layer, resolution)]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (m *memMetadata) UpsertReady(ctx context.Context, version string, chunkX, chunkZ int, layer string, resolution int, objectKey, checksum string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[metaKey(version, chunkX, chunkZ, layer, resolution)] = &models.ChunkMetadata{
		ChunkX: chunkX, ChunkZ: chunkZ, Layer: layer, Resolution: resolution,
		S3Key: objectKey, Checksum: checksum,
		Status: models.ChunkReady, GeneratedAt: time.Now(),
	}
	return nil
}

func (m *memMetadata) HasChunks(ctx context.Context, version string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.rows {
		if strings.HasPrefix(k, version+"|") {
			return true, nil
		}
	}
	return false, nil
}

// fakeDemGate answers the readiness gate with a fixed status map and
// records the rows it created.
type fakeDemGate struct {
	mu      sync.Mutex
	status  map[string]models.DemTileStatus // tileKey → status for existing rows
	created map[string]bool                 // tileKeys upserted via the gate
}

func newFakeDemGate() *fakeDemGate {
	return &fakeDemGate{status: make(map[string]models.DemTileStatus), created: make(map[string]bool)}
}

func (g *fakeDemGate) GetOrCreateMissing(ctx context.Context, version, tileKey string) (*models.DemTile, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created[tileKey] = true
	status, ok := g.status[tileKey]
	if !ok {
		status = models.DemTileMissing
		g.status[tileKey] = status
	}
	return &models.DemTile{TileKey: tileKey, Status: status}, nil
}

// tileSet serves decoded tiles directly, standing in for the resolver
// and the tile cache.
type tileSet struct {
	tiles []*srtm.Tile
}

func (s *tileSet) Resolve(ctx context.Context, lat, lon float64) (dem.Descriptor, error) {
	name, err := srtm.ComputeTileName(lat, lon)
	if err != nil {
		return dem.Descriptor{}, err
	}
	for _, t := range s.tiles {
		if lat >= t.MinLat && lat < t.MaxLat && lon >= t.MinLon && lon < t.MaxLon {
			return dem.Descriptor{
				MinLat: t.MinLat, MaxLat: t.MaxLat, MinLon: t.MinLon, MaxLon: t.MaxLon,
				ObjectKey: dem.ObjectKeyForTile(name),
			}, nil
		}
	}
	return dem.Descriptor{}, &dem.TileNotFoundError{Tile: name}
}

func (s *tileSet) Load(ctx context.Context, d dem.Descriptor) (*srtm.Tile, error) {
	for _, t := range s.tiles {
		if t.MinLat == d.MinLat && t.MinLon == d.MinLon {
			return t, nil
		}
	}
	return nil, fmt.Errorf("tile %s not loaded", d.ObjectKey)
}

// makeTile builds a synthetic 1201-grid tile whose sample value is
// fill(row, col).
func makeTile(minLat, minLon float64, fill func(row, col int) int16) *srtm.Tile {
	dim := srtm.SamplesSRTM3
	samples := make([]int16, dim*dim)
	for row := 0; row < dim; row++ {
		for col := 0; col < dim; col++ {
			samples[row*dim+col] = fill(row, col)
		}
	}
	return &srtm.Tile{
		MinLat: minLat, MaxLat: minLat + 1,
		MinLon: minLon, MaxLon: minLon + 1,
		Width: dim, Height: dim, Samples: samples,
	}
}
