package dem

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/terrainworks/worldapi/internal/srtm"
)

// FetchClient downloads raw tile bytes by tile name.
type FetchClient interface {
	Fetch(ctx context.Context, tileName string) ([]byte, error)
}

// TileWriter persists raw tile bytes and returns the object key.
type TileWriter interface {
	WriteTile(ctx context.Context, tileName string, data []byte) (string, error)
}

// Resolver ensures the DEM tile covering a point is locally present
// and indexed before sampling reads it. Concurrent requests for the
// same tile coalesce into one fetch; different tiles proceed in
// parallel.
type Resolver struct {
	index   *Index
	fetcher FetchClient
	store   TileWriter
	group   singleflight.Group
}

// NewResolver wires the resolver over the shared index.
func NewResolver(index *Index, fetcher FetchClient, store TileWriter) *Resolver {
	return &Resolver{index: index, fetcher: fetcher, store: store}
}

// Resolve returns the descriptor of the tile containing (lat, lon),
// fetching and persisting it on first use. On success the descriptor
// is in the index and the bytes are in the local store; decoding into
// the raw-tile cache happens later, at sample time.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) (Descriptor, error) {
	tileName, err := srtm.ComputeTileName(lat, lon)
	if err != nil {
		return Descriptor{}, err
	}
	objectKey := ObjectKeyForTile(tileName)

	if d, ok := r.index.FindContaining(lat, lon); ok {
		return d, nil
	}

	result, err, _ := r.group.Do(objectKey, func() (interface{}, error) {
		// Another flight may have landed while we queued.
		if d, ok := r.index.Get(objectKey); ok {
			return d, nil
		}

		data, err := r.fetcher.Fetch(ctx, tileName)
		if err != nil {
			return nil, err
		}
		if _, err := r.store.WriteTile(ctx, tileName, data); err != nil {
			return nil, err
		}

		d, err := DescriptorForTile(tileName)
		if err != nil {
			return nil, err
		}
		r.index.Add(d)
		return d, nil
	})
	if err != nil {
		return Descriptor{}, err
	}
	return result.(Descriptor), nil
}
