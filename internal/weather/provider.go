package weather

import (
	"context"
	"errors"

	"github.com/i474232898/agri-weather-dashboard/internal/period"
)

var (
	ErrUnknownInstitution = errors.New("unknown institution")
	ErrStationNotFound    = errors.New("station not found")

	// ErrNoData marks a valid request that matched zero rows. It is never
	// used for transport failures.
	ErrNoData = errors.New("no data for this selection")

	// ErrDownloadTimeout is returned when a bulk download exceeds its deadline.
	ErrDownloadTimeout = errors.New("request timed out, narrow your date range")

	// ErrTransport covers connection failures and unreadable responses.
	ErrTransport = errors.New("upstream unavailable")
	// ErrUpstreamStatus covers non-2xx responses.
	ErrUpstreamStatus = errors.New("upstream returned an error status")
	// ErrInvalidPayload is returned when a response fails schema validation.
	ErrInvalidPayload = errors.New("upstream returned an invalid payload")

	ErrUnsupported = errors.New("operation not supported for this institution")
)

// StationSource abstracts one institution's station network.
type StationSource interface {
	Institution() Institution

	// MaxPageSize is the largest limit the source accepts for DailyRange.
	MaxPageSize() int

	Stations(ctx context.Context) ([]Station, error)
	DailyRange(ctx context.Context, stationID string, w period.Window, offset, limit int) (Page[DailyRecord], error)
	Realtime(ctx context.Context, limit int) ([]RealtimeObservation, error)
}

// MonthlySource is implemented by sources that publish monthly aggregates.
type MonthlySource interface {
	MonthlyRange(ctx context.Context, stationID, startMonth, endMonth string, offset, limit int) (Page[MonthlyRecord], error)
}

// ForecastSource is implemented by sources that publish forecasts.
type ForecastSource interface {
	ShortForecast(ctx context.Context, region string, limit int) ([]ShortForecastEntry, error)
	MidForecast(ctx context.Context, region string, limit int) ([]MidForecastEntry, error)
	ShortForecastRegions(ctx context.Context) ([]ForecastRegion, error)
	MidForecastRegions(ctx context.Context) ([]ForecastRegion, error)
}

// Catalog is the contract the in-memory station catalog must satisfy.
type Catalog interface {
	ReplaceStations(inst Institution, stations []Station)
	Stations(inst Institution) []Station
	Station(inst Institution, id string) (Station, error)
}
