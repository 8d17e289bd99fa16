package module

import "sync"

// resolutionCache memoizes resolutions by nominal URI and loads by canonical
// URI. Each entry is computed at most once; racing callers block on the
// first computation and then share its result.
type resolutionCache struct {
	mu       sync.Mutex
	resolved map[string]*resolveEntry
	sources  map[string]*sourceEntry
}

type resolveEntry struct {
	once     sync.Once
	resolved Resolved
	err      error
}

type sourceEntry struct {
	once sync.Once
	src  string
	err  error
}

func newResolutionCache() *resolutionCache {
	return &resolutionCache{
		resolved: make(map[string]*resolveEntry),
		sources:  make(map[string]*sourceEntry),
	}
}

func (c *resolutionCache) resolve(uri string, fn func() (Resolved, error)) (Resolved, error) {
	c.mu.Lock()
	entry, ok := c.resolved[uri]
	if !ok {
		entry = &resolveEntry{}
		c.resolved[uri] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.resolved, entry.err = fn()
	})
	return entry.resolved, entry.err
}

func (c *resolutionCache) load(canonicalURI string, fn func() (string, error)) (string, error) {
	c.mu.Lock()
	entry, ok := c.sources[canonicalURI]
	if !ok {
		entry = &sourceEntry{}
		c.sources[canonicalURI] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.src, entry.err = fn()
	})
	return entry.src, entry.err
}
