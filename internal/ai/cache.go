package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DirCache tracks downloaded weights as entries in a directory.
type DirCache struct {
	dir string
}

// NewDirCache returns a cache rooted at dir. The directory is created on
// first write.
func NewDirCache(dir string) *DirCache {
	return &DirCache{dir: dir}
}

// Dir returns the cache directory.
func (c *DirCache) Dir() string { return c.dir }

// Keys lists the cache entries.
func (c *DirCache) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes an entry. Missing entries are ignored.
func (c *DirCache) Delete(_ context.Context, key string) error {
	if key == "" || filepath.Base(key) != key {
		return fmt.Errorf("invalid cache key %q", key)
	}
	return os.RemoveAll(filepath.Join(c.dir, key))
}

// Has reports whether weights for modelID are cached.
func (c *DirCache) Has(_ context.Context, modelID string) (bool, error) {
	_, err := os.Stat(filepath.Join(c.dir, modelID))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

type cacheManifest struct {
	Model    string    `json:"model"`
	Server   string    `json:"server"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Mark records modelID as cached.
func (c *DirCache) Mark(modelID, server string) error {
	dir := filepath.Join(c.dir, modelID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create cache entry: %w", err)
	}
	data, err := json.MarshalIndent(cacheManifest{Model: modelID, Server: server, LoadedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o600)
}
