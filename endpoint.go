package gateway

import "sync"

// endpointCache holds the single last-known-good stream URL (§4.D).
// There is no TTL and no negative caching: a URL stays cached until it
// is actually tried and fails to open a stream. It has its own mutex
// because the connection procedure consults and updates it outside of
// the Session's own critical sections (the discovery HTTP round trip
// must not be made while holding the session lock).
type endpointCache struct {
	mu  sync.Mutex
	url string
	set bool
}

// Get returns the cached URL and whether one is present.
func (c *endpointCache) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url, c.set
}

// Set stores url, without the query suffix the controller appends
// before opening (§4.D: "the URL actually used, without query suffix").
func (c *endpointCache) Set(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.url = url
	c.set = true
}

// Clear invalidates the cache, e.g. after the cached URL failed to open
// a stream.
func (c *endpointCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.url = ""
	c.set = false
}
