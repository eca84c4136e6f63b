package chunks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrainworks/worldapi/internal/models"
)

func TestSeedCreatesAnchorPerActiveVersion(t *testing.T) {
	metadata := newMemMetadata()
	store := newMemStore()
	seeder := NewSeeder(testVersions("v1", "v2"), NewWriter(store), metadata)
	ctx := context.Background()

	require.NoError(t, seeder.Seed(ctx))

	for _, version := range []string{"v1", "v2"} {
		row, err := metadata.Get(ctx, version, 0, 0, models.LayerTerrain, 2)
		require.NoError(t, err)
		require.NotNil(t, row, "anchor row missing for %s", version)
		assert.Equal(t, models.ChunkReady, row.Status)

		data, err := store.Get(ctx, row.S3Key)
		require.NoError(t, err)
		chunk, err := Deserialize(data, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, chunk.Resolution)
		assert.Len(t, chunk.Heights, 9)
		for _, h := range chunk.Heights {
			assert.Zero(t, h)
		}
		assert.Zero(t, chunk.MinElevation)
		assert.Zero(t, chunk.MaxElevation)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	metadata := newMemMetadata()
	store := newMemStore()
	seeder := NewSeeder(testVersions("v1"), NewWriter(store), metadata)
	ctx := context.Background()

	require.NoError(t, seeder.Seed(ctx))
	require.NoError(t, seeder.Seed(ctx))

	store.mu.Lock()
	puts := store.puts
	store.mu.Unlock()
	assert.Equal(t, 1, puts, "re-seeding must not re-upload the anchor")

	row, err := metadata.Get(ctx, "v1", 0, 0, models.LayerTerrain, 2)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, models.ChunkReady, row.Status)
}

func TestSeedSkipsPopulatedVersions(t *testing.T) {
	metadata := newMemMetadata()
	store := newMemStore()
	ctx := context.Background()

	// An existing chunk row (any chunk) marks the world as seeded.
	require.NoError(t, metadata.UpsertReady(ctx, "v1", 5, 5, models.LayerTerrain, 16, "some/key.bin", "sum"))

	seeder := NewSeeder(testVersions("v1"), NewWriter(store), metadata)
	require.NoError(t, seeder.Seed(ctx))

	row, err := metadata.Get(ctx, "v1", 0, 0, models.LayerTerrain, 2)
	require.NoError(t, err)
	assert.Nil(t, row, "seed must not run for a version that already has chunks")
}
