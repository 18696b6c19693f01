package weather

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/agri-weather-dashboard/internal/period"
	"github.com/i474232898/agri-weather-dashboard/internal/region"
)

const (
	// DefaultDownloadTimeout bounds a whole bulk download.
	DefaultDownloadTimeout = 60 * time.Second

	defaultPageSize   = 20
	forecastFetchSize = 100
	realtimeFetchSize = 500
	forecastMapLimit  = 3
)

// ServiceConfig carries the static data and limits a Service runs with.
// Zero values fall back to the built-in defaults.
type ServiceConfig struct {
	Table           *region.Table
	Geography       region.Geography
	Resolver        *period.Resolver
	DownloadTimeout time.Duration
	Logger          *slog.Logger
}

// Service answers dashboard queries by combining the station catalog with
// the remote sources.
type Service struct {
	catalog   Catalog
	sources   map[Institution]StationSource
	monthly   MonthlySource
	forecasts ForecastSource

	table           *region.Table
	geo             region.Geography
	resolver        *period.Resolver
	downloadTimeout time.Duration
	logger          *slog.Logger
}

// NewService creates a new Service. Sources that also implement
// MonthlySource or ForecastSource are used for those queries.
func NewService(catalog Catalog, sources []StationSource, cfg ServiceConfig) *Service {
	s := &Service{
		catalog:         catalog,
		sources:         make(map[Institution]StationSource, len(sources)),
		table:           cfg.Table,
		geo:             cfg.Geography,
		resolver:        cfg.Resolver,
		downloadTimeout: cfg.DownloadTimeout,
		logger:          cfg.Logger,
	}
	if s.table == nil {
		s.table = region.DefaultTable()
	}
	if s.geo.ProvinceCenters == nil {
		s.geo = region.DefaultGeography()
	}
	if s.resolver == nil {
		s.resolver = period.NewResolver(time.UTC, period.DefaultLagDays)
	}
	if s.downloadTimeout <= 0 {
		s.downloadTimeout = DefaultDownloadTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	for _, src := range sources {
		s.sources[src.Institution()] = src
		if m, ok := src.(MonthlySource); ok && s.monthly == nil {
			s.monthly = m
		}
		if f, ok := src.(ForecastSource); ok && s.forecasts == nil {
			s.forecasts = f
		}
	}
	return s
}

// Resolver exposes the period resolver the service evaluates bounds with.
func (s *Service) Resolver() *period.Resolver {
	return s.resolver
}

// Table exposes the province classifier.
func (s *Service) Table() *region.Table {
	return s.table
}

func (s *Service) source(inst Institution) (StationSource, error) {
	src, ok := s.sources[inst]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstitution, inst)
	}
	return src, nil
}

// RefreshStations reloads one institution's station list and replaces the
// catalog's working set wholesale.
func (s *Service) RefreshStations(ctx context.Context, inst Institution) (int, error) {
	src, err := s.source(inst)
	if err != nil {
		return 0, err
	}

	stations, err := src.Stations(ctx)
	if err != nil {
		return 0, fmt.Errorf("load %s stations: %w", inst, err)
	}
	for i := range stations {
		stations[i].Institution = inst
		if stations[i].Province == "" {
			stations[i].Province = s.table.ProvinceFromStationName(stations[i].Name)
		}
	}

	s.catalog.ReplaceStations(inst, stations)
	s.logger.Info("station catalog refreshed", "institution", inst, "stations", len(stations))
	return len(stations), nil
}

// RefreshAll reloads every institution. One failing institution does not
// stop the others.
func (s *Service) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, inst := range Institutions {
		if _, ok := s.sources[inst]; !ok {
			continue
		}
		if _, err := s.RefreshStations(ctx, inst); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) stations(ctx context.Context, inst Institution) ([]Station, error) {
	if _, err := s.source(inst); err != nil {
		return nil, err
	}
	stations := s.catalog.Stations(inst)
	if len(stations) == 0 {
		if _, err := s.RefreshStations(ctx, inst); err != nil {
			return nil, err
		}
		stations = s.catalog.Stations(inst)
	}
	return stations, nil
}

// Stations lists an institution's stations, optionally narrowed to one
// province, ordered by name.
func (s *Service) Stations(ctx context.Context, inst Institution, province string) ([]Station, error) {
	all, err := s.stations(ctx, inst)
	if err != nil {
		return nil, err
	}
	out := make([]Station, 0, len(all))
	for _, st := range all {
		if province == "" || st.Province == province {
			out = append(out, st)
		}
	}
	slices.SortFunc(out, func(a, b Station) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// Provinces lists the provinces that have at least one station, in table
// order with the fallback label last.
func (s *Service) Provinces(ctx context.Context, inst Institution) ([]string, error) {
	all, err := s.stations(ctx, inst)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool)
	for _, st := range all {
		present[st.Province] = true
	}

	out := make([]string, 0, len(present))
	for _, p := range s.table.Provinces() {
		if present[p] {
			out = append(out, p)
			delete(present, p)
		}
	}
	if present[region.Fallback] {
		out = append(out, region.Fallback)
	}
	return out, nil
}

// Station looks up one station.
func (s *Service) Station(ctx context.Context, inst Institution, id string) (Station, error) {
	if _, err := s.stations(ctx, inst); err != nil {
		return Station{}, err
	}
	st, err := s.catalog.Station(inst, id)
	if err != nil {
		return Station{}, fmt.Errorf("%w: %s %s", ErrStationNotFound, inst, id)
	}
	return st, nil
}

// Period resolves a station's queryable bounds and default window.
func (s *Service) Period(ctx context.Context, inst Institution, id string) (Station, period.Resolution, error) {
	st, err := s.Station(ctx, inst, id)
	if err != nil {
		return Station{}, period.Resolution{}, err
	}
	res, err := s.resolver.Resolve(st.FirstDate, st.LastDate)
	if err != nil {
		return st, period.Resolution{}, err
	}
	return st, res, nil
}

// History returns one page of daily records for a station and window.
func (s *Service) History(ctx context.Context, inst Institution, id string, w period.Window, offset, limit int) (Page[DailyRecord], error) {
	src, err := s.source(inst)
	if err != nil {
		return Page[DailyRecord]{}, err
	}
	_, res, err := s.Period(ctx, inst, id)
	if err != nil {
		return Page[DailyRecord]{}, err
	}
	if err := res.Bounds.Validate(w); err != nil {
		return Page[DailyRecord]{}, err
	}

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if n := src.MaxPageSize(); limit > n {
		limit = n
	}

	page, err := src.DailyRange(ctx, id, w, offset, limit)
	if err != nil {
		return Page[DailyRecord]{}, err
	}
	if page.Total == 0 && len(page.Data) == 0 {
		return Page[DailyRecord]{}, ErrNoData
	}
	return page, nil
}

// MonthlyHistory returns one page of monthly aggregates. Months are "YYYY-MM".
func (s *Service) MonthlyHistory(ctx context.Context, id, startMonth, endMonth string, offset, limit int) (Page[MonthlyRecord], error) {
	if s.monthly == nil {
		return Page[MonthlyRecord]{}, ErrUnsupported
	}
	start, err := time.Parse("2006-01", startMonth)
	if err != nil {
		return Page[MonthlyRecord]{}, fmt.Errorf("%w: start month %q", period.ErrInvalidWindow, startMonth)
	}
	end, err := time.Parse("2006-01", endMonth)
	if err != nil {
		return Page[MonthlyRecord]{}, fmt.Errorf("%w: end month %q", period.ErrInvalidWindow, endMonth)
	}
	if start.After(end) {
		return Page[MonthlyRecord]{}, fmt.Errorf("%w: start month %s is after end month %s", period.ErrInvalidWindow, startMonth, endMonth)
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}

	page, err := s.monthly.MonthlyRange(ctx, id, startMonth, endMonth, offset, limit)
	if err != nil {
		return Page[MonthlyRecord]{}, err
	}
	if page.Total == 0 && len(page.Data) == 0 {
		return Page[MonthlyRecord]{}, ErrNoData
	}
	return page, nil
}

// Download is a complete result set ready for export.
type Download struct {
	Station Station
	Window  period.Window
	All     bool
	Records []DailyRecord
}

// Download fetches every daily record of a station within w, or within the
// station's whole bounds when w is nil. The whole fetch is bounded by the
// download timeout.
func (s *Service) Download(ctx context.Context, inst Institution, id string, w *period.Window) (Download, error) {
	src, err := s.source(inst)
	if err != nil {
		return Download{}, err
	}
	st, res, err := s.Period(ctx, inst, id)
	if err != nil {
		return Download{}, err
	}

	dl := Download{Station: st}
	if w == nil {
		dl.All = true
		dl.Window = period.Window{Start: res.Bounds.Start, End: res.Bounds.End}
	} else {
		if err := res.Bounds.Validate(*w); err != nil {
			return Download{}, err
		}
		dl.Window = *w
	}

	ctx, cancel := context.WithTimeout(ctx, s.downloadTimeout)
	defer cancel()

	size := src.MaxPageSize()
	for offset := 0; ; {
		page, err := src.DailyRange(ctx, id, dl.Window, offset, size)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				s.logger.Warn("download timed out", "institution", inst, "station", id,
					"fetched", len(dl.Records), "timeout", s.downloadTimeout)
				return Download{}, ErrDownloadTimeout
			}
			return Download{}, err
		}
		dl.Records = append(dl.Records, page.Data...)
		offset += page.Fetched
		if page.Fetched == 0 || offset >= page.Total {
			break
		}
	}

	if len(dl.Records) == 0 {
		return Download{}, ErrNoData
	}
	return dl, nil
}

// RealtimePanel is the current-conditions view of one institution.
type RealtimePanel struct {
	Institution  Institution           `json:"institution"`
	Observations []RealtimeObservation `json:"observations"`
	Cards        []ProvinceCard        `json:"cards"`
}

// Realtime returns the latest observations and a representative card per
// target province.
func (s *Service) Realtime(ctx context.Context, inst Institution) (RealtimePanel, error) {
	src, err := s.source(inst)
	if err != nil {
		return RealtimePanel{}, err
	}
	obs, err := src.Realtime(ctx, realtimeFetchSize)
	if err != nil {
		return RealtimePanel{}, err
	}
	if len(obs) == 0 {
		return RealtimePanel{}, ErrNoData
	}

	// The feed is newest first; keep the latest reading per station.
	seen := make(map[string]bool, len(obs))
	latest := make([]RealtimeObservation, 0, len(obs))
	for _, o := range obs {
		if seen[o.StationID] {
			continue
		}
		seen[o.StationID] = true
		if o.Province == "" {
			o.Province = s.table.ProvinceFromStationName(o.StationName)
		}
		o.WindCompass = WindDirection(o.WindDirection)
		latest = append(latest, o)
	}
	obs = latest

	return RealtimePanel{
		Institution:  inst,
		Observations: obs,
		Cards:        RepresentativeCards(obs, s.geo.RealtimeTargets[string(inst)], s.geo),
	}, nil
}

// ShortForecast returns the noon forecast for the next three days.
func (s *Service) ShortForecast(ctx context.Context, regionName string) ([]ShortForecastDay, error) {
	if s.forecasts == nil {
		return nil, ErrUnsupported
	}
	entries, err := s.forecasts.ShortForecast(ctx, regionName, forecastFetchSize)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoData
	}
	return GroupShortByDay(entries, s.resolver.Today(), 1, 3), nil
}

// MidForecast returns AM/PM forecasts for days four to seven.
func (s *Service) MidForecast(ctx context.Context, regionName string) ([]MidForecastDay, error) {
	if s.forecasts == nil {
		return nil, ErrUnsupported
	}
	entries, err := s.forecasts.MidForecast(ctx, regionName, forecastFetchSize)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoData
	}
	return GroupMidByDay(entries, s.resolver.Today(), 4, 7), nil
}

// ForecastKind selects the short- or mid-range forecast product.
type ForecastKind string

const (
	ForecastShort ForecastKind = "short"
	ForecastMid   ForecastKind = "mid"
)

// ForecastRegions lists the regions with published forecasts.
func (s *Service) ForecastRegions(ctx context.Context, kind ForecastKind) ([]ForecastRegion, error) {
	if s.forecasts == nil {
		return nil, ErrUnsupported
	}
	switch kind {
	case ForecastShort:
		return s.forecasts.ShortForecastRegions(ctx)
	case ForecastMid:
		return s.forecasts.MidForecastRegions(ctx)
	}
	return nil, fmt.Errorf("%w: forecast kind %q", ErrUnsupported, kind)
}

// MapPoint is tomorrow's noon condition at one fixed map location.
type MapPoint struct {
	region.ForecastLocation
	Date      time.Time `json:"date"`
	Available bool      `json:"available"`
	Condition Condition `json:"condition"`
	Sky       *int      `json:"sky"`
	Pty       *int      `json:"pty"`
}

// ForecastMap resolves tomorrow's noon condition for every fixed map
// location. Locations are fetched concurrently; one failing location is
// reported as unavailable without failing the others.
func (s *Service) ForecastMap(ctx context.Context) ([]MapPoint, error) {
	if s.forecasts == nil {
		return nil, ErrUnsupported
	}
	regions, err := s.forecasts.ShortForecastRegions(ctx)
	if err != nil {
		return nil, err
	}
	published := make(map[string]bool, len(regions))
	for _, r := range regions {
		published[r.Name] = true
	}

	today := s.resolver.Today()
	tomorrow := today.AddDate(0, 0, 1)
	locs := s.geo.ForecastLocations
	points := make([]MapPoint, len(locs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(forecastMapLimit)
	for i, loc := range locs {
		points[i] = MapPoint{ForecastLocation: loc, Date: tomorrow, Condition: ConditionUnknown}
		if !published[loc.RegionName] {
			s.logger.Debug("no short forecast published for map location", "location", loc.ID, "region", loc.RegionName)
			continue
		}
		g.Go(func() error {
			entries, err := s.forecasts.ShortForecast(gctx, loc.RegionName, forecastFetchSize)
			if err != nil {
				s.logger.Warn("forecast map location failed", "location", loc.ID, "error", err)
				return nil
			}
			day := GroupShortByDay(entries, today, 1, 1)[0]
			if len(day.Values) == 0 {
				return nil
			}
			points[i].Available = true
			points[i].Sky = parseCode(day.Values["SKY"])
			points[i].Pty = parseCode(day.Values["PTY"])
			points[i].Condition = day.Condition
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}
