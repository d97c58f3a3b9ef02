package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"clientmap/internal"
)

// WriteArtifact replaces the artifact at path with entities. The document
// is written to a temporary file in the same directory and renamed into
// place, so readers see either the previous artifact or the new one.
func WriteArtifact(entities []internal.Entity, path string) (err error) {
	blob, err := encodeArtifact(entities)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(blob); err != nil {
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp artifact: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err = os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp artifact: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}

func encodeArtifact(entities []internal.Entity) ([]byte, error) {
	out := make([]internal.Entity, len(entities))
	for i, e := range entities {
		if e.Equipment == nil {
			e.Equipment = []string{}
		}
		out[i] = e
	}

	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadArtifact loads a processed artifact. A missing file is not an error:
// it means no run has completed yet.
func ReadArtifact(path string) ([]internal.Entity, error) {
	blob, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []internal.Entity{}, nil
	}
	if err != nil {
		return nil, err
	}

	var entities []internal.Entity
	if err := json.Unmarshal(blob, &entities); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	if entities == nil {
		entities = []internal.Entity{}
	}
	return entities, nil
}

// UniqueCities returns the sorted distinct city values of entities.
func UniqueCities(entities []internal.Entity) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, e := range entities {
		if _, ok := seen[e.City]; ok {
			continue
		}
		seen[e.City] = struct{}{}
		out = append(out, e.City)
	}
	sort.Strings(out)
	return out
}
