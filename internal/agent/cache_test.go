package agent

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) *ArchiveCache {
	t.Setenv("HOME", t.TempDir())
	cache, err := NewArchiveCache(ttl)
	require.NoError(t, err)
	return cache
}

func TestArchiveCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t, time.Hour)

	require.NoError(t, cache.Put("1.2.3", "archive-payload"))
	assert.Equal(t, "archive-payload", cache.Get("1.2.3"))
	assert.Empty(t, cache.Get("9.9.9"))
}

func TestArchiveCacheNeverCachesDev(t *testing.T) {
	cache := newTestCache(t, time.Hour)

	require.NoError(t, cache.Put("dev", "archive-payload"))
	assert.Empty(t, cache.Get("dev"))

	_, err := os.Stat(cache.entryPath("dev"))
	assert.True(t, os.IsNotExist(err))
}

func TestArchiveCacheExpiredEntryRemoved(t *testing.T) {
	cache := newTestCache(t, -time.Minute)

	require.NoError(t, cache.Put("1.2.3", "archive-payload"))
	assert.Empty(t, cache.Get("1.2.3"))

	_, err := os.Stat(cache.entryPath("1.2.3"))
	assert.True(t, os.IsNotExist(err))
}

func TestArchiveCacheConcurrentGetsOfCorruptEntry(t *testing.T) {
	cache := newTestCache(t, time.Hour)

	require.NoError(t, os.WriteFile(cache.entryPath("1.2.3"), []byte("not json"), 0600))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Empty(t, cache.Get("1.2.3"))
		}()
	}
	wg.Wait()

	_, err := os.Stat(cache.entryPath("1.2.3"))
	assert.True(t, os.IsNotExist(err))
}
