package iconcache

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// OriginFetcher retrieves an icon from its remote origin.
type OriginFetcher interface {
	Fetch(ctx context.Context, url string) (imageBytes []byte, contentType string, err error)
}

// Store persists icon entries keyed by storage key. Write returns the entry
// as committed, so callers observe the same metadata a later Lookup would.
type Store interface {
	Lookup(key Key) (*Entry, error)
	Write(key Key, imageBytes []byte, contentType, sourceURL string) (*Entry, error)
	Clear() error
	TotalSize() (int64, error)
}

// Coordinator decides, per (platform, identifier), whether a persisted icon
// is still valid, serves it if so, and otherwise downloads and persists it.
// Concurrent downloads for the same key are coalesced: only one origin fetch
// runs at a time per key and every waiter observes its outcome.
type Coordinator struct {
	store   Store
	fetcher OriginFetcher
	logger  *zap.Logger
	flight  singleflight.Group
}

func New(store Store, fetcher OriginFetcher, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		fetcher: fetcher,
		logger:  logger,
	}
}

// GetCached returns the cached entry for (platform, identifier) if one exists
// and is still valid against currentURL. An empty currentURL skips the
// freshness check. Never triggers a fetch.
func (c *Coordinator) GetCached(platform, identifier, currentURL string) (*Entry, error) {
	key, err := ResolveKey(platform, identifier)
	if err != nil {
		return nil, err
	}

	return c.lookupValid(key, currentURL)
}

func (c *Coordinator) lookupValid(key Key, currentURL string) (*Entry, error) {
	entry, err := c.store.Lookup(key)
	if err != nil {
		return nil, err
	}

	if !IsValid(entry, currentURL) {
		return nil, ErrNotFound
	}

	return entry, nil
}

// GetOrDownload returns the cached entry for (platform, identifier) when it
// is valid against url, and otherwise fetches url, persists the result and
// returns it. Calls arriving while a fetch for the same key is in flight
// await that fetch instead of starting their own; all of them receive the
// identical outcome. On fetch failure nothing is written, so a previously
// cached entry stays available to callers that relax the URL check.
func (c *Coordinator) GetOrDownload(ctx context.Context, platform, identifier, url string) (*Entry, error) {
	key, err := ResolveKey(platform, identifier)
	if err != nil {
		return nil, err
	}

	if entry, err := c.lookupValid(key, url); err == nil {
		return entry, nil
	}

	result, err, shared := c.flight.Do(string(key), func() (interface{}, error) {
		return c.download(ctx, key, url)
	})
	if err != nil {
		return nil, err
	}

	if shared {
		c.logger.Debug("coalesced icon download", zap.String("key", string(key)))
	}

	return result.(*Entry), nil
}

func (c *Coordinator) download(ctx context.Context, key Key, url string) (*Entry, error) {
	// Re-check under the flight slot: a fetch that completed while this
	// caller was queueing may already have written the entry.
	if entry, err := c.lookupValid(key, url); err == nil {
		return entry, nil
	}

	imageBytes, contentType, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		c.logger.Warn("icon fetch failed",
			zap.String("key", string(key)),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	entry, err := c.store.Write(key, imageBytes, contentType, url)
	if err != nil {
		return nil, err
	}

	c.logger.Info("icon downloaded",
		zap.String("key", string(key)),
		zap.String("url", url),
		zap.String("content_type", contentType),
		zap.Int("bytes", len(imageBytes)),
	)

	return entry, nil
}

// ClearCache removes every cached icon. In-flight downloads are not aborted;
// one that completes afterwards simply repopulates its entry.
func (c *Coordinator) ClearCache() error {
	if err := c.store.Clear(); err != nil {
		return err
	}

	c.logger.Info("icon cache cleared")
	return nil
}

// GetCacheSize returns the total bytes occupied by cached image blobs.
func (c *Coordinator) GetCacheSize() (int64, error) {
	return c.store.TotalSize()
}
