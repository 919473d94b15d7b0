package iconcache_test

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iconvault/internal/iconcache"
)

func newTestStore(t *testing.T) *iconcache.FileStore {
	t.Helper()
	store, err := iconcache.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func mustKey(t *testing.T, platform, identifier string) iconcache.Key {
	t.Helper()
	key, err := iconcache.ResolveKey(platform, identifier)
	require.NoError(t, err)
	return key
}

func mustWrite(t *testing.T, store *iconcache.FileStore, key iconcache.Key, blob []byte, contentType, sourceURL string) *iconcache.Entry {
	t.Helper()
	entry, err := store.Write(key, blob, contentType, sourceURL)
	require.NoError(t, err)
	return entry
}

func TestStoreWriteLookupRoundTrip(t *testing.T) {
	store := newTestStore(t)
	key := mustKey(t, "steam", "570")

	written := mustWrite(t, store, key, []byte("png-bytes"), "image/png", "http://x/icon.png")

	entry, err := store.Lookup(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), entry.Bytes)
	assert.Equal(t, "image/png", entry.ContentType)
	assert.Equal(t, "http://x/icon.png", entry.SourceURL)
	assert.False(t, entry.StoredAt.IsZero())

	// Write reports the entry exactly as committed: a later lookup sees the
	// same timestamp, not a freshly stamped one.
	assert.True(t, written.StoredAt.Equal(entry.StoredAt))
	assert.Equal(t, written.Bytes, entry.Bytes)
}

func TestStoreLookupMiss(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Lookup(mustKey(t, "steam", "570"))
	assert.ErrorIs(t, err, iconcache.ErrNotFound)
}

func TestStoreWriteReplacesEntry(t *testing.T) {
	store := newTestStore(t)
	key := mustKey(t, "steam", "570")

	mustWrite(t, store, key, []byte("old"), "image/png", "http://x/a.png")
	mustWrite(t, store, key, []byte("newer"), "image/webp", "http://x/b.webp")

	entry, err := store.Lookup(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("newer"), entry.Bytes)
	assert.Equal(t, "image/webp", entry.ContentType)
	assert.Equal(t, "http://x/b.webp", entry.SourceURL)
}

func TestStoreTruncatedRecordIsMiss(t *testing.T) {
	dir := t.TempDir()
	store, err := iconcache.NewFileStore(dir)
	require.NoError(t, err)
	key := mustKey(t, "steam", "570")

	mustWrite(t, store, key, []byte("png-bytes"), "image/png", "http://x/icon.png")

	// Truncate the record mid-blob; the store must report a miss instead of
	// returning bytes that no longer match the recorded metadata.
	path := filepath.Join(dir, "steam", "570.icon")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-4], 0644))

	_, err = store.Lookup(key)
	assert.ErrorIs(t, err, iconcache.ErrNotFound)
}

func TestStoreClear(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		key := mustKey(t, "steam", fmt.Sprintf("%d", i))
		mustWrite(t, store, key, []byte("data"), "image/png", "http://x/icon.png")
	}

	require.NoError(t, store.Clear())

	for i := 0; i < 5; i++ {
		_, err := store.Lookup(mustKey(t, "steam", fmt.Sprintf("%d", i)))
		assert.ErrorIs(t, err, iconcache.ErrNotFound)
	}

	total, err := store.TotalSize()
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	// The store stays usable after a clear.
	key := mustKey(t, "epic", "fortnite")
	mustWrite(t, store, key, []byte("back"), "image/png", "http://x/f.png")
	_, err = store.Lookup(key)
	require.NoError(t, err)
}

func TestStoreTotalSizeSumsBlobBytesOnly(t *testing.T) {
	store := newTestStore(t)

	blobs := map[string]int{"1": 100, "2": 250, "3": 1}
	var want int64
	for id, n := range blobs {
		key := mustKey(t, "steam", id)
		mustWrite(t, store, key, make([]byte, n), "image/png", "http://x/"+id)
		want += int64(n)
	}

	// A second platform contributes too.
	mustWrite(t, store, mustKey(t, "blizzard", "pro"), make([]byte, 512), "image/jpeg", "http://y/pro")
	want += 512

	total, err := store.TotalSize()
	require.NoError(t, err)
	assert.Equal(t, want, total)
}

func TestStoreConcurrentWritesDistinctKeys(t *testing.T) {
	store := newTestStore(t)

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := mustKey(t, "steam", fmt.Sprintf("app-%d", i))
			_, errs[i] = store.Write(key, []byte(fmt.Sprintf("blob-%d", i)), "image/png", fmt.Sprintf("http://x/%d", i))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		entry, err := store.Lookup(mustKey(t, "steam", fmt.Sprintf("app-%d", i)))
		require.NoError(t, err)
		assert.Equal(t, []byte(fmt.Sprintf("blob-%d", i)), entry.Bytes)
	}
}

func TestStoreClearWaitsForInFlightWrites(t *testing.T) {
	store := newTestStore(t)

	// Race writers against clears; every lookup afterwards must see either a
	// complete entry or a clean miss, never an error from a torn record.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			key := mustKey(t, "steam", fmt.Sprintf("race-%d", i))
			for j := 0; j < 20; j++ {
				_, _ = store.Write(key, []byte("payload"), "image/png", "http://x/icon.png")
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_ = store.Clear()
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		entry, err := store.Lookup(mustKey(t, "steam", fmt.Sprintf("race-%d", i)))
		if err == nil {
			assert.Equal(t, []byte("payload"), entry.Bytes)
		} else {
			assert.ErrorIs(t, err, iconcache.ErrNotFound)
		}
	}
}
