package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// coreFiles are the records pre-loaded by Warm.
var coreFiles = []string{
	"profile.json",
	"tech-stack.json",
	"conventions.json",
}

// LoadWithCache returns the document at path, serving from the cache when
// the entry is still valid. On a miss the file is read and parsed directly;
// the result is cached only when the category's base TTL is nonzero. A
// missing file yields an empty document, not an error, and parse failures
// are logged and yield an empty document.
func (c *Cache) LoadWithCache(path string, category Category) any {
	if data, ok := c.Get(path, category); ok {
		return data
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]any{}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("Failed to read record")
		return map[string]any{}
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("Failed to parse record")
		return map[string]any{}
	}

	if c.baseTTL[category] > 0 {
		c.Set(path, data, category)
	}

	return data
}

// Warm pre-loads the core records under the knowledge base path. It is an
// explicit call; the cache never warms itself implicitly.
func (c *Cache) Warm() int {
	loaded := 0
	for _, name := range coreFiles {
		path := filepath.Join(c.kbPath, "core", name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		c.LoadWithCache(path, CategoryCore)
		loaded++
	}

	c.logger.Debug().Int("files", loaded).Msg("Cache warmed")
	return loaded
}
