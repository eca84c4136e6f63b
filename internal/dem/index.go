// Package dem implements the DEM ingestion pipeline: the runtime tile
// index, the public-dataset fetcher, the local tile store, the
// Postgres tile state machine, the per-tile single-flight resolver,
// the decoded-tile cache, and the background download worker.
package dem

import (
	"sync"
)

// Descriptor locates a 1°×1° DEM tile that is present in the local
// store. Bounds are half-open on the max edges.
type Descriptor struct {
	MinLat    float64
	MaxLat    float64
	MinLon    float64
	MaxLon    float64
	ObjectKey string
}

// Contains reports whether the point lies inside the tile's cell.
func (d Descriptor) Contains(lat, lon float64) bool {
	return lat >= d.MinLat && lat < d.MaxLat && lon >= d.MinLon && lon < d.MaxLon
}

// Index is the process-wide mapping from object key to tile
// descriptor. Tiles are added when they become locally present and
// never removed.
type Index struct {
	mu    sync.RWMutex
	byKey map[string]Descriptor
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{byKey: make(map[string]Descriptor)}
}

// Add registers a descriptor. Re-adding the same object key is
// idempotent; the last write wins.
func (i *Index) Add(d Descriptor) {
	i.mu.Lock()
	i.byKey[d.ObjectKey] = d
	i.mu.Unlock()
}

// FindContaining returns a descriptor whose cell contains the point.
func (i *Index) FindContaining(lat, lon float64) (Descriptor, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, d := range i.byKey {
		if d.Contains(lat, lon) {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Get returns the descriptor for an object key.
func (i *Index) Get(objectKey string) (Descriptor, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	d, ok := i.byKey[objectKey]
	return d, ok
}

// Len returns the number of indexed tiles.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.byKey)
}
