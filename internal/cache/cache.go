package cache

import (
	"sync"

	"github.com/OCAP2/navscore/pkg/core"
)

// VehicleCache holds the latest pose of every vehicle reporting to the service.
// Only one of them is scored, the rest are kept for status reporting.
type VehicleCache struct {
	m     sync.RWMutex
	poses map[string]core.Pose
}

func NewVehicleCache() *VehicleCache {
	return &VehicleCache{
		poses: make(map[string]core.Pose),
	}
}

func (c *VehicleCache) Get(name string) (core.Pose, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	p, ok := c.poses[name]
	return p, ok
}

func (c *VehicleCache) Set(name string, p core.Pose) {
	c.m.Lock()
	defer c.m.Unlock()
	c.poses[name] = p
}

func (c *VehicleCache) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.poses)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
