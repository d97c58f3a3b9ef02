package gazetteer

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"clientmap/internal"
	"clientmap/internal/util"
)

type Index struct {
	byKey map[string]internal.Coordinate
}

func BuildIndex(places []internal.Place) *Index {
	idx := &Index{byKey: make(map[string]internal.Coordinate, len(places))}
	for _, p := range places {
		key := util.Normalize(p.Name)
		if key == "" {
			continue
		}
		if _, exists := idx.byKey[key]; exists {
			continue
		}
		idx.byKey[key] = internal.Coordinate{Latitude: p.Latitude, Longitude: p.Longitude}
	}
	return idx
}

// Load reads a JSON array of places. A missing or malformed file yields an
// empty index and a warning; the caller keeps going without coordinates.
func Load(path string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("gazetteer unavailable, continuing without local coordinates", "path", path, "error", err)
		return BuildIndex(nil)
	}

	var places []internal.Place
	if err := json.Unmarshal(blob, &places); err != nil {
		logger.Warn("gazetteer malformed, continuing without local coordinates", "path", path, "error", err)
		return BuildIndex(nil)
	}

	idx := BuildIndex(places)
	logger.Info("gazetteer loaded", "path", path, "places", len(places), "keys", idx.Len())
	return idx
}

func (i *Index) Lookup(key string) (internal.Coordinate, bool) {
	if i == nil || key == "" {
		return internal.Coordinate{}, false
	}
	c, ok := i.byKey[key]
	return c, ok
}

func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.byKey)
}

func (i *Index) Locate(_ context.Context, q internal.CityQuery) (internal.Coordinate, bool) {
	return i.Lookup(q.Key)
}
