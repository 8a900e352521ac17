// SPDX-License-Identifier: MPL-2.0

package inventory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/exp/slices"

	"github.com/nodetool-ai/ntcomp/pkg/component"
)

const (
	// CacheFileName is the name of the metadata cache inside the component store.
	CacheFileName = "components.toml"

	cacheVersion = 1
)

// ErrCorruptCache is returned by Load when the cache file cannot be parsed.
// Callers treat it as an empty cache.
var ErrCorruptCache = errors.New("corrupt inventory cache")

type (
	// Entry is one installed component as recorded in the cache.
	Entry struct {
		Name        component.Name `toml:"name"`
		Hash        component.Hash `toml:"hash"`
		Archive     string         `toml:"archive"`
		Size        int64          `toml:"size"`
		InstalledAt time.Time      `toml:"installed_at"`
	}

	// Cache is the decoded content of components.toml.
	Cache struct {
		Version    int     `toml:"version"`
		Components []Entry `toml:"component"`
	}

	// CacheFile serializes reads and writes of one components.toml.
	CacheFile struct {
		path string
		mu   sync.Mutex
	}
)

// OpenCache returns the cache file handle for the component store at dir.
func OpenCache(dir string) *CacheFile {
	return &CacheFile{path: filepath.Join(dir, CacheFileName)}
}

// Path returns the cache file location.
func (c *CacheFile) Path() string { return c.path }

// Load reads the cache. A missing file yields an empty cache. A file that
// cannot be parsed yields an empty cache and an error wrapping ErrCorruptCache.
func (c *CacheFile) Load() (*Cache, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

// Record upserts e into the cache and writes it back.
func (c *CacheFile) Record(e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cache, err := c.load()
	if err != nil && !errors.Is(err, ErrCorruptCache) {
		return err
	}

	cache.upsert(e)
	return c.save(cache)
}

// Save replaces the cache content.
func (c *CacheFile) Save(cache *Cache) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(cache)
}

// Lookup returns the entry for name.
func (c *Cache) Lookup(name component.Name) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	for _, e := range c.Components {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Disagreements returns the names whose cached hash differs from the
// filename-derived local manifest, including cached names no longer on disk.
// The local manifest is authoritative.
func (c *Cache) Disagreements(local component.LocalManifest) []component.Name {
	if c == nil {
		return nil
	}
	var out []component.Name
	for _, e := range c.Components {
		h, ok := local.Hash(e.Name)
		if !ok || !h.Equal(e.Hash) {
			out = append(out, e.Name)
		}
	}
	return out
}

func (c *Cache) upsert(e Entry) {
	idx := slices.IndexFunc(c.Components, func(x Entry) bool { return x.Name == e.Name })
	if idx >= 0 {
		c.Components[idx] = e
	} else {
		c.Components = append(c.Components, e)
	}
	slices.SortFunc(c.Components, func(a, b Entry) int {
		return strings.Compare(string(a.Name), string(b.Name))
	})
}

func (c *CacheFile) load() (*Cache, error) {
	empty := &Cache{Version: cacheVersion}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return empty, nil
		}
		return empty, fmt.Errorf("reading %s: %w", c.path, err)
	}

	var cache Cache
	if err := toml.Unmarshal(data, &cache); err != nil {
		return empty, fmt.Errorf("%w: %s: %w", ErrCorruptCache, c.path, err)
	}
	if cache.Version == 0 {
		cache.Version = cacheVersion
	}
	return &cache, nil
}

// save writes through a sibling temp file so readers never see a torn cache.
func (c *CacheFile) save(cache *Cache) error {
	data, err := toml.Marshal(cache)
	if err != nil {
		return fmt.Errorf("encoding inventory cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating component store: %w", err)
	}

	tmp, err := os.CreateTemp(dir, CacheFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing cache temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing cache temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", c.path, err)
	}
	return nil
}
