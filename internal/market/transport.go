package market

import (
	"bufio"
	"bytes"
	"net/http"
	"net/http/httputil"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// noCacheHeader marks requests which must always reach the network.
const noCacheHeader = "Cache-Control"

// limitedTransport waits for the rate limiter before each request.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
	logger  *zap.Logger
}

func (t *limitedTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(request.Context()); err != nil {
		return nil, err
	}

	response, err := t.base.RoundTrip(request)

	if err != nil {
		return nil, err
	}

	t.logger.Debug("coingecko request",
		zap.String("method", request.Method),
		zap.String("path", request.URL.Path),
		zap.Int("status", response.StatusCode),
	)

	return response, nil
}

type cacheEntry struct {
	content []byte
	expires time.Time
}

// memoryCache keeps successful GET responses in memory until they expire.
type memoryCache struct {
	base    http.RoundTripper
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newMemoryCache(base http.RoundTripper, ttl time.Duration) *memoryCache {
	return &memoryCache{
		base:    base,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *memoryCache) RoundTrip(request *http.Request) (*http.Response, error) {
	if c.ttl <= 0 || request.Method != http.MethodGet || request.Header.Get(noCacheHeader) == "no-cache" {
		return c.base.RoundTrip(request)
	}

	key := request.URL.String()

	if response, ok := c.get(key, request); ok {
		return response, nil
	}

	response, err := c.base.RoundTrip(request)

	if err != nil || response.StatusCode != http.StatusOK {
		return response, err
	}

	content, err := httputil.DumpResponse(response, true)

	if err != nil {
		return nil, err
	}

	c.put(key, content)

	return http.ReadResponse(bufio.NewReader(bytes.NewReader(content)), request)
}

// put stores a response and drops every entry that has expired, so keys
// which are never requested again do not stay in memory.
func (c *memoryCache) put(key string, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	for existing, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, existing)
		}
	}

	c.entries[key] = cacheEntry{content: content, expires: now.Add(c.ttl)}
}

func (c *memoryCache) get(key string, request *http.Request) (*http.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]

	if !ok {
		return nil, false
	}

	if !c.now().Before(entry.expires) {
		delete(c.entries, key)

		return nil, false
	}

	response, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(entry.content)), request)

	if err != nil {
		delete(c.entries, key)

		return nil, false
	}

	return response, true
}
