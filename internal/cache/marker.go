package cache

import (
	"sync"

	"github.com/OCAP2/navscore/pkg/core"
)

// MarkerCache maps marker names to their latest known position
type MarkerCache struct {
	mu      sync.RWMutex
	markers map[string]core.Position3D
}

// NewMarkerCache creates a new MarkerCache
func NewMarkerCache() *MarkerCache {
	return &MarkerCache{
		markers: make(map[string]core.Position3D),
	}
}

// Get retrieves a marker position by name
func (c *MarkerCache) Get(name string) (core.Position3D, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pos, ok := c.markers[name]
	return pos, ok
}

// Set stores a marker position by name
func (c *MarkerCache) Set(name string, pos core.Position3D) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markers[name] = pos
}

// Len returns the number of known markers
func (c *MarkerCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.markers)
}

// Source returns a live view of the named marker.
// The marker does not need to be known yet.
func (c *MarkerCache) Source(name string) MarkerSource {
	return MarkerSource{cache: c, name: name}
}

// MarkerSource reads one marker from a MarkerCache on every call.
type MarkerSource struct {
	cache *MarkerCache
	name  string
}

// Name returns the marker name.
func (s MarkerSource) Name() string {
	return s.name
}

// Position returns the latest position of the marker.
func (s MarkerSource) Position() (core.Position3D, bool) {
	return s.cache.Get(s.name)
}
