package dem

import (
	"context"
	"log/slog"
	"strings"
)

// TileLister enumerates stored tile object keys.
type TileLister interface {
	ListTileKeys(ctx context.Context) ([]string, error)
}

// InitializeIndex populates the runtime index from tiles already in
// the local store so a restarted process serves them without
// re-fetching. An empty store is fine; the system then runs in pure
// lazy-fetch mode.
func InitializeIndex(ctx context.Context, store TileLister, index *Index) error {
	keys, err := store.ListTileKeys(ctx)
	if err != nil {
		return err
	}

	added := 0
	for _, key := range keys {
		name := strings.TrimPrefix(key, ObjectPrefix)
		if !strings.HasSuffix(name, ".hgt") {
			continue
		}
		descriptor, err := DescriptorForTile(strings.TrimSuffix(name, ".hgt"))
		if err != nil {
			slog.Warn("skipping unparseable DEM object", "key", key, "error", err)
			continue
		}
		index.Add(descriptor)
		added++
	}

	slog.Info("dem index initialized", "tiles", added)
	return nil
}
