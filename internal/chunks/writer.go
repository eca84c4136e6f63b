package chunks

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/terrainworks/worldapi/internal/objectstore"
)

// chunkCacheControl marks chunk objects as immutable for downstream
// CDN and client caches; a chunk's bytes never change once published.
const chunkCacheControl = "public, max-age=31536000, immutable"

// ObjectKeyForChunk returns the store key for a chunk object.
func ObjectKeyForChunk(worldVersion string, resolution, chunkX, chunkZ int) string {
	return fmt.Sprintf("chunks/%s/terrain/r%d/%d/%d.bin", worldVersion, resolution, chunkX, chunkZ)
}

// WriteResult reports where a chunk landed and its integrity tag.
type WriteResult struct {
	ObjectKey string
	Checksum  string
}

// Writer uploads serialized chunks to the object store.
type Writer struct {
	objects objectstore.Client
	group   singleflight.Group
}

// NewWriter wraps an object-store client.
func NewWriter(objects objectstore.Client) *Writer {
	return &Writer{objects: objects}
}

// Write publishes a chunk under objectKey. If the object already
// exists its integrity tag is reused and no upload happens; chunk
// content is deterministic, so concurrent fabrications of the same
// key deduplicate here: overlapping writes of one key share a single
// check-and-upload.
func (w *Writer) Write(ctx context.Context, chunk *TerrainChunk, objectKey string) (*WriteResult, error) {
	result, err, _ := w.group.Do(objectKey, func() (interface{}, error) {
		return w.write(ctx, chunk, objectKey)
	})
	if err != nil {
		return nil, err
	}
	return result.(*WriteResult), nil
}

func (w *Writer) write(ctx context.Context, chunk *TerrainChunk, objectKey string) (*WriteResult, error) {
	if info, err := w.objects.Head(ctx, objectKey); err == nil {
		return &WriteResult{ObjectKey: objectKey, Checksum: info.ETag}, nil
	} else if !objectstore.IsNotFound(err) {
		return nil, fmt.Errorf("chunks: check existing object %s: %w", objectKey, err)
	}

	data, err := Serialize(chunk)
	if err != nil {
		return nil, err
	}

	etag, err := w.objects.Put(ctx, objectKey, data, objectstore.PutOptions{
		ContentType:  "application/octet-stream",
		CacheControl: chunkCacheControl,
	})
	if err != nil {
		return nil, fmt.Errorf("chunks: upload object %s: %w", objectKey, err)
	}
	return &WriteResult{ObjectKey: objectKey, Checksum: etag}, nil
}
