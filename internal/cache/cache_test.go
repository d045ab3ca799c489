package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/OCAP2/navscore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVehicleCache_SetAndGet(t *testing.T) {
	cache := NewVehicleCache()

	pose := core.Pose{Position: core.Position3D{X: 3, Y: 4}, Yaw: 1.5}
	cache.Set("wamv", pose)

	got, ok := cache.Get("wamv")
	require.True(t, ok, "expected to find wamv")
	assert.Equal(t, pose, got)
}

func TestVehicleCache_Get_NotFound(t *testing.T) {
	cache := NewVehicleCache()

	_, ok := cache.Get("ghost")
	assert.False(t, ok)
}

func TestVehicleCache_Concurrent(t *testing.T) {
	cache := NewVehicleCache()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		name := fmt.Sprintf("v%d", i)
		go func(id int) {
			defer wg.Done()
			cache.Set(name, core.Pose{Yaw: float64(id)})
		}(i)
		go func() {
			defer wg.Done()
			cache.Get(name)
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, cache.Len())
}

// SafeCounter tests

func TestSafeCounter_InitialValue(t *testing.T) {
	c := &SafeCounter{}
	assert.Equal(t, int(0), c.Value())
}

func TestSafeCounter_Concurrent(t *testing.T) {
	c := &SafeCounter{}
	var wg sync.WaitGroup

	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()

	assert.Equal(t, int(1000), c.Value())
}
