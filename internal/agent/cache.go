package agent

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ArchiveCache keeps packaged agent archives on disk keyed by version,
// so repeated deploys of the same agent build skip the packaging walk.
// Entries expire; the "dev" version is never cached since it does not
// identify a build.
type ArchiveCache struct {
	mu       sync.Mutex
	cacheDir string
	ttl      time.Duration
}

type archiveEntry struct {
	Archive   string    `json:"archive"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewArchiveCache(ttl time.Duration) (*ArchiveCache, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	cacheDir := filepath.Join(homeDir, ".nodeforge", "cache")
	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &ArchiveCache{cacheDir: cacheDir, ttl: ttl}, nil
}

func (c *ArchiveCache) entryPath(version string) string {
	return filepath.Join(c.cacheDir, fmt.Sprintf("agent_%x.json", sha256.Sum256([]byte(version))))
}

// Get returns the cached archive for a version, or "" when the entry
// is absent or expired.
func (c *ArchiveCache) Get(version string) string {
	if version == versionFallback {
		return ""
	}

	// Full lock: a stale or corrupt entry is removed on the spot, so
	// this is not a read-only path.
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.entryPath(version))
	if err != nil {
		return ""
	}

	var entry archiveEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		os.Remove(c.entryPath(version))
		return ""
	}

	if time.Now().After(entry.ExpiresAt) {
		os.Remove(c.entryPath(version))
		return ""
	}

	return entry.Archive
}

func (c *ArchiveCache) Put(version, archive string) error {
	if version == versionFallback {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := archiveEntry{
		Archive:   archive,
		ExpiresAt: time.Now().Add(c.ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := os.WriteFile(c.entryPath(version), data, 0600); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	return nil
}
