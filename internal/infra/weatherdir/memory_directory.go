package weatherdir

import (
	"context"
	"strings"
	"sync"

	"github.com/yanqian/zephyre/internal/domain/weather"
)

// MemoryDirectory serves the canned place list from process memory.
type MemoryDirectory struct {
	mu     sync.RWMutex
	places []weather.Observation
}

// NewMemoryDirectory seeds the directory with places, or the default list when none are given.
func NewMemoryDirectory(places ...weather.Observation) *MemoryDirectory {
	if len(places) == 0 {
		places = weather.DefaultPlaces()
	}
	return &MemoryDirectory{places: append([]weather.Observation(nil), places...)}
}

// Find returns the first place whose name contains query, ignoring case.
func (d *MemoryDirectory) Find(_ context.Context, query string) (weather.Observation, bool, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return weather.Observation{}, false, nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, place := range d.places {
		if strings.Contains(strings.ToLower(place.Place), needle) {
			return place, true, nil
		}
	}
	return weather.Observation{}, false, nil
}

// List returns a copy of every known place in directory order.
func (d *MemoryDirectory) List(context.Context) ([]weather.Observation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]weather.Observation(nil), d.places...), nil
}

var _ weather.Directory = (*MemoryDirectory)(nil)
