package dem

import (
	"context"
	"fmt"

	"github.com/terrainworks/worldapi/internal/objectstore"
	"github.com/terrainworks/worldapi/internal/srtm"
)

// ObjectPrefix is where uncompressed tiles live in the object store.
const ObjectPrefix = "dem/srtm/"

// ObjectKeyForTile returns the store key for a tile name.
func ObjectKeyForTile(tileName string) string {
	return ObjectPrefix + tileName + ".hgt"
}

// DescriptorForTile derives the index descriptor a locally-present
// tile gets, from its name alone.
func DescriptorForTile(tileName string) (Descriptor, error) {
	bounds, err := srtm.ParseTileName(tileName)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{
		MinLat:    bounds.MinLat,
		MaxLat:    bounds.MaxLat,
		MinLon:    bounds.MinLon,
		MaxLon:    bounds.MaxLon,
		ObjectKey: ObjectKeyForTile(tileName),
	}, nil
}

// Store persists uncompressed .hgt tiles in the local object store.
type Store struct {
	objects objectstore.Client
}

// NewStore wraps an object-store client.
func NewStore(objects objectstore.Client) *Store {
	return &Store{objects: objects}
}

// WriteTile uploads raw tile bytes and returns the object key.
// Overwriting an existing tile is allowed.
func (s *Store) WriteTile(ctx context.Context, tileName string, data []byte) (string, error) {
	key := ObjectKeyForTile(tileName)
	if _, err := s.objects.Put(ctx, key, data, objectstore.PutOptions{ContentType: "application/octet-stream"}); err != nil {
		return "", fmt.Errorf("dem: write tile %s: %w", tileName, err)
	}
	return key, nil
}

// Exists reports whether the tile is already stored locally.
func (s *Store) Exists(ctx context.Context, tileName string) (bool, error) {
	_, err := s.objects.Head(ctx, ObjectKeyForTile(tileName))
	if err != nil {
		if objectstore.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReadObject returns the raw bytes stored under an object key.
func (s *Store) ReadObject(ctx context.Context, objectKey string) ([]byte, error) {
	return s.objects.Get(ctx, objectKey)
}

// ListTileKeys returns every stored tile object key.
func (s *Store) ListTileKeys(ctx context.Context) ([]string, error) {
	return s.objects.List(ctx, ObjectPrefix)
}
