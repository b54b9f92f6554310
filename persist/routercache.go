package persist

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// CachedResult is the value the router cache stores per task fingerprint.
type CachedResult struct {
	Result     string    `json:"result"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// RouterCache is a bounded, LRU-evicted, disk-backed cache from a stable
// task fingerprint to a previously solved result. It is maintained by the
// optional external router and is never read mid-step by the core loop;
// concurrent misses for the same fingerprint are deduplicated with
// singleflight so only one solve runs.
type RouterCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, CachedResult]
	group singleflight.Group
	path  string
}

// NewRouterCache builds a cache with the given capacity (default 10000),
// loading any existing snapshot from path.
func NewRouterCache(path string, capacity int) (*RouterCache, error) {
	if capacity <= 0 {
		capacity = 10000
	}
	inner, err := lru.New[string, CachedResult](capacity)
	if err != nil {
		return nil, err
	}
	rc := &RouterCache{cache: inner, path: path}
	rc.load()
	return rc, nil
}

// Get returns the cached result for fingerprint, if present.
func (c *RouterCache) Get(fingerprint string) (CachedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Get(fingerprint)
}

// Set stores result under fingerprint, evicting the least-recently-used
// entry if the cache is at capacity, and persists the updated snapshot.
func (c *RouterCache) Set(fingerprint string, result CachedResult) error {
	c.mu.Lock()
	c.cache.Add(fingerprint, result)
	c.mu.Unlock()
	return c.save()
}

// GetOrCompute deduplicates concurrent calls for the same fingerprint: if
// a fetch for that key is already in flight, callers share its result
// instead of invoking fn again.
func (c *RouterCache) GetOrCompute(fingerprint string, fn func() (CachedResult, error)) (CachedResult, error) {
	if cached, ok := c.Get(fingerprint); ok {
		return cached, nil
	}

	v, err, _ := c.group.Do(fingerprint, func() (interface{}, error) {
		result, err := fn()
		if err != nil {
			return CachedResult{}, err
		}
		if setErr := c.Set(fingerprint, result); setErr != nil {
			return result, setErr
		}
		return result, nil
	})
	if err != nil {
		return CachedResult{}, err
	}
	return v.(CachedResult), nil
}

// Len returns the current number of cached entries.
func (c *RouterCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

func (c *RouterCache) load() {
	if c.path == "" {
		return
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var snapshot map[string]CachedResult
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range snapshot {
		c.cache.Add(k, v)
	}
}

func (c *RouterCache) save() error {
	if c.path == "" {
		return nil
	}
	c.mu.Lock()
	snapshot := make(map[string]CachedResult, c.cache.Len())
	for _, k := range c.cache.Keys() {
		if v, ok := c.cache.Peek(k); ok {
			snapshot[k] = v
		}
	}
	c.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}
