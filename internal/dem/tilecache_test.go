package dem

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/terrainworks/worldapi/internal/srtm"
)

type memReader struct {
	objects map[string][]byte
	reads   int64
}

func (r *memReader) ReadObject(ctx context.Context, objectKey string) ([]byte, error) {
	atomic.AddInt64(&r.reads, 1)
	data, ok := r.objects[objectKey]
	if !ok {
		return nil, &TileNotFoundError{Tile: objectKey}
	}
	return data, nil
}

func constantTileBytes(t *testing.T, elevation int16) []byte {
	t.Helper()
	samples := make([]int16, srtm.SamplesSRTM3*srtm.SamplesSRTM3)
	for i := range samples {
		samples[i] = elevation
	}
	data, err := srtm.Encode(samples, srtm.SamplesSRTM3, srtm.SamplesSRTM3)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestTileCacheDecodesWithBounds(t *testing.T) {
	d := descriptorFor(t, "N46W113")
	reader := &memReader{objects: map[string][]byte{d.ObjectKey: constantTileBytes(t, 1500)}}
	cache := NewTileCache(reader)

	tile, err := cache.Load(context.Background(), d)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tile.MinLat != 46 || tile.MaxLat != 47 || tile.MinLon != -113 || tile.MaxLon != -112 {
		t.Errorf("tile bounds = %+v", tile)
	}
	got, err := tile.SampleElevation(46.5, -112.5)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1500 {
		t.Errorf("sample = %v, want 1500", got)
	}
}

func TestTileCacheLoadsOnce(t *testing.T) {
	d := descriptorFor(t, "N46W113")
	reader := &memReader{objects: map[string][]byte{d.ObjectKey: constantTileBytes(t, 7)}}
	cache := NewTileCache(reader)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(context.Background(), d); err != nil {
				panic(err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt64(&reader.reads); n != 1 {
		t.Errorf("store reads = %d, want 1", n)
	}
	if cache.Len() != 1 {
		t.Errorf("cache size = %d, want 1", cache.Len())
	}
}

func TestTileCacheBadBytes(t *testing.T) {
	d := descriptorFor(t, "N46W113")
	reader := &memReader{objects: map[string][]byte{d.ObjectKey: {1, 2, 3}}}
	cache := NewTileCache(reader)

	if _, err := cache.Load(context.Background(), d); err == nil {
		t.Fatal("expected decode error for truncated tile")
	}
}
