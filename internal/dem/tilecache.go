package dem

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/terrainworks/worldapi/internal/srtm"
)

// ObjectReader reads raw stored bytes by object key.
type ObjectReader interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
}

// TileCache holds decoded .hgt grids keyed by object key for the
// lifetime of the process. There is no eviction: tiles are large but
// the set is bounded by the served world extent, and the object store
// remains the source of truth.
type TileCache struct {
	reader ObjectReader

	mu    sync.RWMutex
	tiles map[string]*srtm.Tile
	group singleflight.Group
}

// NewTileCache wraps a store reader.
func NewTileCache(reader ObjectReader) *TileCache {
	return &TileCache{reader: reader, tiles: make(map[string]*srtm.Tile)}
}

// Load returns the decoded tile for a descriptor, reading and
// decoding it on first use. Concurrent loads of the same tile share
// one decode.
func (c *TileCache) Load(ctx context.Context, d Descriptor) (*srtm.Tile, error) {
	c.mu.RLock()
	tile, ok := c.tiles[d.ObjectKey]
	c.mu.RUnlock()
	if ok {
		return tile, nil
	}

	result, err, _ := c.group.Do(d.ObjectKey, func() (interface{}, error) {
		c.mu.RLock()
		tile, ok := c.tiles[d.ObjectKey]
		c.mu.RUnlock()
		if ok {
			return tile, nil
		}

		data, err := c.reader.ReadObject(ctx, d.ObjectKey)
		if err != nil {
			return nil, fmt.Errorf("dem: load tile %s: %w", d.ObjectKey, err)
		}
		samples, width, height, err := srtm.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("dem: decode tile %s: %w", d.ObjectKey, err)
		}

		decoded := &srtm.Tile{
			MinLat: d.MinLat, MaxLat: d.MaxLat,
			MinLon: d.MinLon, MaxLon: d.MaxLon,
			Width: width, Height: height,
			Samples: samples,
		}

		c.mu.Lock()
		c.tiles[d.ObjectKey] = decoded
		c.mu.Unlock()
		return decoded, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*srtm.Tile), nil
}

// Len returns the number of decoded tiles held.
func (c *TileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tiles)
}
