package weather

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Observation is a point-in-time weather snapshot for a place.
type Observation struct {
	Place       string  `json:"place"`
	Temperature float64 `json:"temperatureCelsius"`
	Humidity    float64 `json:"humidityPercent"`
	Condition   string  `json:"condition"`
	Description string  `json:"description"`
}

// Summary renders the short "Sunny, 22°C" form used by profiles and reports.
func (o Observation) Summary() string {
	return fmt.Sprintf("%s, %d°C", o.Condition, int(math.Round(o.Temperature)))
}

// DisplayHumidity clamps humidity into 0..100 for presentation only.
func (o Observation) DisplayHumidity() float64 {
	return math.Max(0, math.Min(100, o.Humidity))
}

// Request captures the payload accepted by the weather lookup.
type Request struct {
	Place string `json:"place" form:"place"`
}

// Directory resolves a free-text query against the known places.
type Directory interface {
	Find(ctx context.Context, query string) (Observation, bool, error)
	List(ctx context.Context) ([]Observation, error)
}

// Cache stores recent lookups keyed by normalized query and counts how often each is asked for.
type Cache interface {
	Get(ctx context.Context, key string) (Observation, bool, error)
	Set(ctx context.Context, key string, obs Observation, ttl time.Duration) error
	IncrementLookup(ctx context.Context, key, display string) error
	TopLookups(ctx context.Context, limit int) ([]PopularPlace, error)
}

// PopularPlace is a frequently requested lookup.
type PopularPlace struct {
	Place string `json:"place"`
	Count int64  `json:"count"`
}

// Config wires runtime knobs for the weather domain.
type Config struct {
	Latency      time.Duration
	CacheTTL     time.Duration
	PopularLimit int
}

// DefaultPlaces is the canned directory used when no database is configured.
func DefaultPlaces() []Observation {
	return []Observation{
		{Place: "New York", Temperature: 22, Condition: "Sunny", Humidity: 60, Description: "Clear skies with gentle breeze"},
		{Place: "London", Temperature: 15, Condition: "Cloudy", Humidity: 75, Description: "Overcast with light humidity"},
		{Place: "Tokyo", Temperature: 28, Condition: "Humid", Humidity: 85, Description: "Hot and humid summer day"},
		{Place: "Mumbai", Temperature: 32, Condition: "Hot", Humidity: 90, Description: "Very hot and humid monsoon weather"},
		{Place: "Sydney", Temperature: 20, Condition: "Mild", Humidity: 55, Description: "Pleasant spring weather"},
	}
}

// SyntheticConditions are drawn for places missing from the directory.
var SyntheticConditions = []string{"Sunny", "Cloudy", "Rainy", "Humid", "Windy"}
