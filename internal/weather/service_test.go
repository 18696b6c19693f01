package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/agri-weather-dashboard/internal/period"
	"github.com/i474232898/agri-weather-dashboard/internal/region"
)

type mapCatalog struct {
	mu   sync.Mutex
	sets map[Institution][]Station
}

func newMapCatalog() *mapCatalog {
	return &mapCatalog{sets: make(map[Institution][]Station)}
}

func (c *mapCatalog) ReplaceStations(inst Institution, stations []Station) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets[inst] = stations
}

func (c *mapCatalog) Stations(inst Institution) []Station {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Station(nil), c.sets[inst]...)
}

func (c *mapCatalog) Station(inst Institution, id string) (Station, error) {
	for _, st := range c.Stations(inst) {
		if st.ID == id {
			return st, nil
		}
	}
	return Station{}, errors.New("missing")
}

type stubSource struct {
	inst        Institution
	pageSize    int
	stations    []Station
	stationCall int
	records     []DailyRecord
	realtime    []RealtimeObservation
	block       bool
	err         error

	// invalid rows count as fetched but are left out of the page, as a
	// provider does with rows that fail validation.
	invalid func(DailyRecord) bool

	limits []int
}

func (s *stubSource) Institution() Institution { return s.inst }
func (s *stubSource) MaxPageSize() int         { return s.pageSize }

func (s *stubSource) Stations(context.Context) ([]Station, error) {
	s.stationCall++
	return append([]Station(nil), s.stations...), s.err
}

func (s *stubSource) DailyRange(ctx context.Context, id string, w period.Window, offset, limit int) (Page[DailyRecord], error) {
	s.limits = append(s.limits, limit)
	if s.block {
		<-ctx.Done()
		return Page[DailyRecord]{}, ctx.Err()
	}
	if s.err != nil {
		return Page[DailyRecord]{}, s.err
	}
	var match []DailyRecord
	for _, r := range s.records {
		if r.StationID == id && !r.Date.Before(w.Start) && !r.Date.After(w.End) {
			match = append(match, r)
		}
	}
	page := Page[DailyRecord]{Total: len(match), Offset: offset, Limit: limit}
	if offset < len(match) {
		chunk := match[offset:min(offset+limit, len(match))]
		page.Fetched = len(chunk)
		for _, r := range chunk {
			if s.invalid == nil || !s.invalid(r) {
				page.Data = append(page.Data, r)
			}
		}
	}
	return page, nil
}

func (s *stubSource) Realtime(context.Context, int) ([]RealtimeObservation, error) {
	return s.realtime, s.err
}

type stubMonthly struct {
	*stubSource
	months []MonthlyRecord
}

func (s *stubMonthly) MonthlyRange(_ context.Context, _, _, _ string, offset, limit int) (Page[MonthlyRecord], error) {
	return Page[MonthlyRecord]{Total: len(s.months), Offset: offset, Limit: limit, Data: s.months, Fetched: len(s.months)}, nil
}

type stubForecast struct {
	*stubSource
	mu      sync.Mutex
	short   map[string][]ShortForecastEntry
	failFor map[string]bool
	mid     []MidForecastEntry
	regions []ForecastRegion
}

func (s *stubForecast) ShortForecast(_ context.Context, regionName string, _ int) ([]ShortForecastEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[regionName] {
		return nil, ErrTransport
	}
	return s.short[regionName], nil
}

func (s *stubForecast) MidForecast(context.Context, string, int) ([]MidForecastEntry, error) {
	return s.mid, nil
}

func (s *stubForecast) ShortForecastRegions(context.Context) ([]ForecastRegion, error) {
	return s.regions, nil
}

func (s *stubForecast) MidForecastRegions(context.Context) ([]ForecastRegion, error) {
	return []ForecastRegion{{ID: "11B00000", Name: "서울"}}, nil
}

func fixedResolver() *period.Resolver {
	r := period.NewResolver(time.UTC, 2)
	r.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)))
	return r
}

func newTestService(sources ...StationSource) *Service {
	return NewService(newMapCatalog(), sources, ServiceConfig{
		Resolver:        fixedResolver(),
		DownloadTimeout: 50 * time.Millisecond,
	})
}

func rdaStub() *stubSource {
	src := &stubSource{
		inst:     InstitutionRDA,
		pageSize: 10,
		stations: []Station{
			{ID: "100", Name: "수원", FirstDate: "2020-03-15", LastDate: "2024-06-10"},
			{ID: "200", Name: "춘천", FirstDate: "2021-01-01", LastDate: "2024-06-10"},
			{ID: "300", Name: "알수없는역", FirstDate: "2021-01-01", LastDate: "2024-06-10"},
			{ID: "400", Name: "고양", FirstDate: "2021-01-01", LastDate: "2024-06-10"},
		},
	}
	for d := period.Date(2024, time.May, 1); !d.After(period.Date(2024, time.June, 10)); d = d.AddDate(0, 0, 1) {
		src.records = append(src.records, DailyRecord{StationID: "100", Date: d})
	}
	return src
}

func TestService_RefreshClassifiesAndReplaces(t *testing.T) {
	src := rdaStub()
	svc := newTestService(src)

	n, err := svc.RefreshStations(context.Background(), InstitutionRDA)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	st, err := svc.Station(context.Background(), InstitutionRDA, "200")
	require.NoError(t, err)
	assert.Equal(t, "강원특별자치도", st.Province)
	assert.Equal(t, InstitutionRDA, st.Institution)

	src.stations = src.stations[:1]
	_, err = svc.RefreshStations(context.Background(), InstitutionRDA)
	require.NoError(t, err)
	_, err = svc.Station(context.Background(), InstitutionRDA, "200")
	assert.ErrorIs(t, err, ErrStationNotFound)

	_, err = svc.RefreshStations(context.Background(), InstitutionKMA)
	assert.ErrorIs(t, err, ErrUnknownInstitution)
}

func TestService_StationsAndProvinces(t *testing.T) {
	src := rdaStub()
	svc := newTestService(src)
	ctx := context.Background()

	stations, err := svc.Stations(ctx, InstitutionRDA, "경기도")
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, "고양", stations[0].Name)
	assert.Equal(t, "수원", stations[1].Name)

	provinces, err := svc.Provinces(ctx, InstitutionRDA)
	require.NoError(t, err)
	assert.Equal(t, []string{"경기도", "강원특별자치도", region.Fallback}, provinces)

	assert.Equal(t, 1, src.stationCall, "catalog is loaded once and reused")
}

func TestService_RefreshAllJoinsErrors(t *testing.T) {
	rda := rdaStub()
	kma := &stubSource{inst: InstitutionKMA, err: ErrTransport}
	svc := newTestService(rda, kma)

	err := svc.RefreshAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)

	_, err = svc.Station(context.Background(), InstitutionRDA, "100")
	assert.NoError(t, err)
}

func TestService_History(t *testing.T) {
	src := rdaStub()
	svc := newTestService(src)
	ctx := context.Background()
	w := period.Window{Start: period.Date(2024, time.June, 1), End: period.Date(2024, time.June, 10)}

	page, err := svc.History(ctx, InstitutionRDA, "100", w, 0, 500)
	require.NoError(t, err)
	assert.Equal(t, 10, page.Total)
	assert.Equal(t, []int{10}, src.limits, "limit is clamped to the source page size")

	_, err = svc.History(ctx, InstitutionRDA, "200", w, 0, 0)
	assert.ErrorIs(t, err, ErrNoData)

	late := period.Window{Start: period.Date(2024, time.June, 1), End: period.Date(2024, time.June, 11)}
	_, err = svc.History(ctx, InstitutionRDA, "100", late, 0, 0)
	assert.ErrorIs(t, err, period.ErrInvalidWindow)

	src.err = ErrTransport
	_, err = svc.History(ctx, InstitutionRDA, "100", w, 0, 0)
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrNoData)
}

func TestService_Period(t *testing.T) {
	src := rdaStub()
	src.stations = append(src.stations, Station{ID: "500", Name: "수원", FirstDate: "2024-06-14", LastDate: "2024-06-14"})
	svc := newTestService(src)

	_, res, err := svc.Period(context.Background(), InstitutionRDA, "100")
	require.NoError(t, err)
	assert.Equal(t, period.Date(2024, time.June, 10), res.Bounds.End)
	assert.Equal(t, period.Date(2024, time.May, 10), res.Default.Start)

	_, _, err = svc.Period(context.Background(), InstitutionRDA, "500")
	assert.ErrorIs(t, err, period.ErrBoundsUnavailable)
}

func TestService_MonthlyHistory(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(rdaStub())
	_, err := svc.MonthlyHistory(ctx, "100", "2024-01", "2024-03", 0, 0)
	assert.ErrorIs(t, err, ErrUnsupported)

	monthly := &stubMonthly{stubSource: rdaStub(), months: []MonthlyRecord{{StationID: "100", Month: "2024-01"}}}
	svc = newTestService(monthly)

	page, err := svc.MonthlyHistory(ctx, "100", "2024-01", "2024-03", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = svc.MonthlyHistory(ctx, "100", "2024-03", "2024-01", 0, 0)
	assert.ErrorIs(t, err, period.ErrInvalidWindow)
	_, err = svc.MonthlyHistory(ctx, "100", "2024-13", "2024-14", 0, 0)
	assert.ErrorIs(t, err, period.ErrInvalidWindow)

	monthly.months = nil
	_, err = svc.MonthlyHistory(ctx, "100", "2024-01", "2024-03", 0, 0)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestService_DownloadPaginates(t *testing.T) {
	src := rdaStub()
	svc := newTestService(src)
	ctx := context.Background()

	w := period.Window{Start: period.Date(2024, time.May, 1), End: period.Date(2024, time.May, 31)}
	dl, err := svc.Download(ctx, InstitutionRDA, "100", &w)
	require.NoError(t, err)
	assert.False(t, dl.All)
	assert.Len(t, dl.Records, 31)
	assert.Len(t, src.limits, 4)

	dl, err = svc.Download(ctx, InstitutionRDA, "100", nil)
	require.NoError(t, err)
	assert.True(t, dl.All)
	assert.Equal(t, period.Date(2020, time.March, 15), dl.Window.Start)
	assert.Len(t, dl.Records, 41)

	_, err = svc.Download(ctx, InstitutionRDA, "200", nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestService_DownloadSkipsDroppedRowsWithoutRefetching(t *testing.T) {
	src := rdaStub()
	src.invalid = func(r DailyRecord) bool {
		day := r.Date.Day()
		return r.Date.Month() == time.May && (day == 5 || (day >= 11 && day <= 20))
	}
	svc := newTestService(src)

	w := period.Window{Start: period.Date(2024, time.May, 1), End: period.Date(2024, time.May, 31)}
	dl, err := svc.Download(context.Background(), InstitutionRDA, "100", &w)
	require.NoError(t, err)

	seen := make(map[time.Time]int)
	for _, r := range dl.Records {
		seen[r.Date]++
	}
	for d, n := range seen {
		assert.Equal(t, 1, n, "duplicate record for %s", period.FormatDate(d))
	}
	assert.Len(t, dl.Records, 20)
	assert.Contains(t, seen, period.Date(2024, time.May, 31), "pages after a fully dropped page are still fetched")
	assert.Len(t, src.limits, 4)
}

func TestService_DownloadTimeout(t *testing.T) {
	src := rdaStub()
	svc := newTestService(src)
	_, err := svc.Stations(context.Background(), InstitutionRDA, "")
	require.NoError(t, err)
	src.block = true

	_, err = svc.Download(context.Background(), InstitutionRDA, "100", nil)
	assert.ErrorIs(t, err, ErrDownloadTimeout)
	assert.Equal(t, "request timed out, narrow your date range", err.Error())
}

func TestService_Realtime(t *testing.T) {
	kma := &stubSource{
		inst: InstitutionKMA,
		realtime: []RealtimeObservation{
			{StationID: "수원시", StationName: "수원시", Temp: fptr(25), WindDirection: fptr(90)},
			{StationID: "수원시", StationName: "수원시", Temp: fptr(10)},
			{StationID: "청주시", StationName: "청주시", Province: "충청북도"},
		},
	}
	svc := newTestService(kma)

	panel, err := svc.Realtime(context.Background(), InstitutionKMA)
	require.NoError(t, err)
	require.Len(t, panel.Observations, 2)

	first := panel.Observations[0]
	assert.Equal(t, "경기도", first.Province)
	assert.Equal(t, 25.0, *first.Temp)
	assert.Equal(t, "E", first.WindCompass)
	assert.Equal(t, "-", panel.Observations[1].WindCompass)

	require.Len(t, panel.Cards, 2)
	assert.Equal(t, "경기도", panel.Cards[0].Province)
	assert.Equal(t, "충청북도", panel.Cards[1].Province)

	kma.realtime = nil
	_, err = svc.Realtime(context.Background(), InstitutionKMA)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestService_Forecasts(t *testing.T) {
	tomorrow := period.Date(2024, time.June, 16)
	fc := &stubForecast{
		stubSource: &stubSource{inst: InstitutionKMA},
		short: map[string][]ShortForecastEntry{
			"관악구": {
				{FcstDate: tomorrow, FcstTime: "1200", Category: "SKY", Value: "3"},
				{FcstDate: tomorrow, FcstTime: "1200", Category: "PTY", Value: "3"},
			},
			"강릉시": {
				{FcstDate: tomorrow, FcstTime: "1200", Category: "SKY", Value: "1"},
			},
		},
		failFor: map[string]bool{"유성구": true},
		mid: []MidForecastEntry{
			{ForecastDate: period.Date(2024, time.June, 19), Period: HalfDayAM, Condition: "맑음"},
		},
		regions: []ForecastRegion{{Name: "관악구"}, {Name: "유성구"}, {Name: "강릉시"}},
	}
	svc := newTestService(fc)
	ctx := context.Background()

	short, err := svc.ShortForecast(ctx, "관악구")
	require.NoError(t, err)
	require.Len(t, short, 3)
	assert.Equal(t, ConditionSnow, short[0].Condition)

	_, err = svc.ShortForecast(ctx, "없는구")
	assert.ErrorIs(t, err, ErrNoData)

	mid, err := svc.MidForecast(ctx, "")
	require.NoError(t, err)
	require.Len(t, mid, 4)
	assert.Equal(t, ConditionClear, mid[0].AMCondition)

	regions, err := svc.ForecastRegions(ctx, ForecastMid)
	require.NoError(t, err)
	assert.Equal(t, "11B00000", regions[0].ID)
	_, err = svc.ForecastRegions(ctx, "long")
	assert.ErrorIs(t, err, ErrUnsupported)

	points, err := svc.ForecastMap(ctx)
	require.NoError(t, err)
	require.Len(t, points, 6)

	byID := make(map[string]MapPoint)
	for _, p := range points {
		byID[p.ID] = p
		assert.Equal(t, tomorrow, p.Date)
	}
	assert.True(t, byID["gwanak"].Available)
	assert.Equal(t, ConditionSnow, byID["gwanak"].Condition)
	require.NotNil(t, byID["gwanak"].Sky)
	assert.Equal(t, 3, *byID["gwanak"].Sky)
	assert.True(t, byID["gangneung"].Available)
	assert.Equal(t, ConditionClear, byID["gangneung"].Condition)

	assert.False(t, byID["yuseong"].Available, "failed location is isolated")
	assert.Equal(t, ConditionUnknown, byID["yuseong"].Condition)
	assert.False(t, byID["haeundae"].Available, "unpublished region is skipped")
}

func TestService_ForecastsUnsupportedWithoutSource(t *testing.T) {
	svc := newTestService(rdaStub())
	_, err := svc.ShortForecast(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = svc.ForecastMap(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
}
