package store

import (
	"errors"
	"sync"

	"github.com/i474232898/agri-weather-dashboard/internal/observability"
	"github.com/i474232898/agri-weather-dashboard/internal/weather"
)

var (
	// ErrNotFound is returned when a station is not in the catalog.
	ErrNotFound = errors.New("station not in catalog")
)

// stationSet holds one institution's working set, indexed by station id.
type stationSet struct {
	ordered []weather.Station
	byID    map[string]int
}

// CatalogStore is a concurrency-safe in-memory station catalog. Each
// institution's working set is replaced wholesale on reload.
type CatalogStore struct {
	mu sync.RWMutex

	// key: institution
	data map[weather.Institution]*stationSet

	metrics *observability.Metrics
}

// NewCatalogStore creates an empty catalog. metrics may be nil.
func NewCatalogStore(metrics *observability.Metrics) *CatalogStore {
	return &CatalogStore{
		data:    make(map[weather.Institution]*stationSet),
		metrics: metrics,
	}
}

// ReplaceStations swaps in a new working set for an institution. A later
// duplicate id overwrites the earlier entry.
func (s *CatalogStore) ReplaceStations(inst weather.Institution, stations []weather.Station) {
	set := &stationSet{
		ordered: make([]weather.Station, 0, len(stations)),
		byID:    make(map[string]int, len(stations)),
	}
	for _, st := range stations {
		if i, ok := set.byID[st.ID]; ok {
			set.ordered[i] = st
			continue
		}
		set.byID[st.ID] = len(set.ordered)
		set.ordered = append(set.ordered, st)
	}

	s.mu.Lock()
	s.data[inst] = set
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CatalogStations.WithLabelValues(string(inst)).Set(float64(len(set.ordered)))
	}
}

// Stations returns a copy of an institution's working set in load order.
func (s *CatalogStore) Stations(inst weather.Institution) []weather.Station {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.data[inst]
	if !ok {
		return nil
	}
	out := make([]weather.Station, len(set.ordered))
	copy(out, set.ordered)
	return out
}

// Station returns one station of an institution.
func (s *CatalogStore) Station(inst weather.Institution, id string) (weather.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.data[inst]
	if !ok {
		return weather.Station{}, ErrNotFound
	}
	i, ok := set.byID[id]
	if !ok {
		return weather.Station{}, ErrNotFound
	}
	return set.ordered[i], nil
}

var _ weather.Catalog = (*CatalogStore)(nil)
