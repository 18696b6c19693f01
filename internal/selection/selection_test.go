package selection

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/agri-weather-dashboard/internal/period"
	"github.com/i474232898/agri-weather-dashboard/internal/weather"
)

type fakeStations map[string]weather.Station

func (f fakeStations) Station(_ context.Context, inst weather.Institution, id string) (weather.Station, error) {
	st, ok := f[string(inst)+"/"+id]
	if !ok {
		return weather.Station{}, weather.ErrStationNotFound
	}
	return st, nil
}

func newMachine(t *testing.T) *Machine {
	t.Helper()
	stations := fakeStations{
		"RDA/100": {Institution: weather.InstitutionRDA, ID: "100", Name: "수원", Province: "경기도",
			FirstDate: "2020-03-15", LastDate: "2024-06-10"},
		"RDA/200": {Institution: weather.InstitutionRDA, ID: "200", Name: "춘천", Province: "강원특별자치도",
			FirstDate: "2021-01-01", LastDate: "2024-06-10"},
		"RDA/300": {Institution: weather.InstitutionRDA, ID: "300", Name: "이천", Province: "경기도"},
		"KMA/108": {Institution: weather.InstitutionKMA, ID: "108", Name: "서울", Province: "서울특별시",
			FirstDate: "1960-01-01", LastDate: "2024-06-14"},
	}
	r := period.NewResolver(time.UTC, 2)
	r.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)))
	return NewMachine(stations, r)
}

func apply(t *testing.T, m *Machine, s State, events ...Event) State {
	t.Helper()
	for _, ev := range events {
		var err error
		s, err = m.Apply(context.Background(), s, ev)
		require.NoError(t, err, "event %+v", ev)
	}
	return s
}

func TestApply_StationSeedsDefaultWindow(t *testing.T) {
	m := newMachine(t)
	s := apply(t, m, State{},
		Event{Kind: KindInstitution, Value: "rda"},
		Event{Kind: KindProvince, Value: "경기도"},
		Event{Kind: KindStation, Value: "100"},
	)

	require.NotNil(t, s.Station)
	require.NotNil(t, s.Resolution)
	assert.Equal(t, Pick{Year: 2024, Month: 5, Day: 10}, s.Start)
	assert.Equal(t, Pick{Year: 2024, Month: 6, Day: 10}, s.End)
	assert.Equal(t, DaySelected, s.Phase(Start))
	assert.True(t, s.Ready())

	w, err := s.Window()
	require.NoError(t, err)
	assert.Equal(t, period.Date(2024, time.May, 10), w.Start)
	assert.Equal(t, period.Date(2024, time.June, 10), w.End)
}

func TestApply_ProvinceChangeClearsStationAndWindow(t *testing.T) {
	m := newMachine(t)
	s := apply(t, m, State{},
		Event{Kind: KindInstitution, Value: "RDA"},
		Event{Kind: KindProvince, Value: "경기도"},
		Event{Kind: KindStation, Value: "100"},
		Event{Kind: KindProvince, Value: "강원특별자치도"},
	)

	assert.Nil(t, s.Station)
	assert.Nil(t, s.Resolution)
	assert.Equal(t, Pick{}, s.Start)
	assert.Equal(t, Pick{}, s.End)
	assert.Equal(t, ProvinceSelected, s.Phase(Start))
	assert.Equal(t, ProvinceSelected, s.Phase(End))
	assert.False(t, s.Ready())
}

func TestApply_InstitutionChangeResetsEverything(t *testing.T) {
	m := newMachine(t)
	s := apply(t, m, State{},
		Event{Kind: KindInstitution, Value: "RDA"},
		Event{Kind: KindStation, Value: "100"},
		Event{Kind: KindInstitution, Value: "KMA"},
	)
	assert.Equal(t, State{Institution: weather.InstitutionKMA}, s)
	assert.Equal(t, Unselected, s.Phase(Start))
}

func TestApply_StationWithoutProvinceAdoptsStationProvince(t *testing.T) {
	m := newMachine(t)
	s := apply(t, m, State{},
		Event{Kind: KindInstitution, Value: "KMA"},
		Event{Kind: KindStation, Value: "108"},
	)
	assert.Equal(t, "서울특별시", s.Province)
	assert.Equal(t, Pick{Year: 2024, Month: 6, Day: 13}, s.End)
}

func TestApply_StationOutsideProvinceRejected(t *testing.T) {
	m := newMachine(t)
	s := apply(t, m, State{},
		Event{Kind: KindInstitution, Value: "RDA"},
		Event{Kind: KindProvince, Value: "경기도"},
	)
	next, err := m.Apply(context.Background(), s, Event{Kind: KindStation, Value: "200"})
	assert.ErrorIs(t, err, ErrOptionOutOfRange)
	assert.Equal(t, s, next)
}

func TestApply_UnavailableBoundsDisableDates(t *testing.T) {
	m := newMachine(t)
	s := apply(t, m, State{},
		Event{Kind: KindInstitution, Value: "RDA"},
		Event{Kind: KindStation, Value: "300"},
	)

	assert.True(t, s.BoundsUnavailable)
	assert.Nil(t, s.Resolution)
	assert.Empty(t, s.Options().Start.Years)

	_, err := s.Window()
	assert.ErrorIs(t, err, period.ErrBoundsUnavailable)

	_, err = m.Apply(context.Background(), s, Event{Kind: KindYear, Which: Start, Value: "2024"})
	assert.ErrorIs(t, err, period.ErrBoundsUnavailable)
}

func TestApply_YearResetsMonthAndDay(t *testing.T) {
	m := newMachine(t)
	s := apply(t, m, State{},
		Event{Kind: KindInstitution, Value: "RDA"},
		Event{Kind: KindStation, Value: "100"},
		Event{Kind: KindYear, Which: Start, Value: "2020"},
	)
	assert.Equal(t, Pick{Year: 2020}, s.Start)
	assert.Equal(t, YearSelected, s.Phase(Start))
	assert.Equal(t, DaySelected, s.Phase(End))
	assert.False(t, s.Ready())

	opts := s.Options().Start
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, opts.Months)
	assert.Empty(t, opts.Days)

	s = apply(t, m, s, Event{Kind: KindMonth, Which: Start, Value: "3"})
	assert.Equal(t, MonthSelected, s.Phase(Start))
	assert.Equal(t, 15, s.Options().Start.Days[0])
	assert.Len(t, s.Options().Start.Days, 17)

	s = apply(t, m, s, Event{Kind: KindDay, Which: Start, Value: "20"})
	assert.True(t, s.Ready())

	s = apply(t, m, s, Event{Kind: KindMonth, Which: Start, Value: "4"})
	assert.Equal(t, Pick{Year: 2020, Month: 4}, s.Start)
}

func TestApply_RejectsOptionsOutsideBounds(t *testing.T) {
	m := newMachine(t)
	s := apply(t, m, State{},
		Event{Kind: KindInstitution, Value: "RDA"},
		Event{Kind: KindStation, Value: "100"},
	)

	cases := []struct {
		name string
		ev   Event
	}{
		{"year before first", Event{Kind: KindYear, Which: Start, Value: "2019"}},
		{"month after end", Event{Kind: KindMonth, Which: End, Value: "7"}},
		{"day after end", Event{Kind: KindDay, Which: End, Value: "11"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := m.Apply(context.Background(), s, tc.ev)
			assert.ErrorIs(t, err, ErrOptionOutOfRange)
			assert.Equal(t, s, next)
		})
	}
}

func TestApply_InvalidEvents(t *testing.T) {
	m := newMachine(t)
	ctx := context.Background()

	_, err := m.Apply(ctx, State{}, Event{Kind: KindProvince, Value: "경기도"})
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = m.Apply(ctx, State{}, Event{Kind: KindInstitution, Value: "NASA"})
	assert.ErrorIs(t, err, weather.ErrUnknownInstitution)

	s := State{Institution: weather.InstitutionRDA}
	_, err = m.Apply(ctx, s, Event{Kind: KindYear, Which: Start, Value: "2024"})
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = m.Apply(ctx, s, Event{Kind: KindYear, Value: "2024"})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = m.Apply(ctx, s, Event{Kind: KindStation, Value: "999"})
	assert.ErrorIs(t, err, weather.ErrStationNotFound)

	_, err = m.Apply(ctx, s, Event{Kind: "hour", Value: "1"})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestWindow_StartAfterEnd(t *testing.T) {
	m := newMachine(t)
	s := apply(t, m, State{},
		Event{Kind: KindInstitution, Value: "RDA"},
		Event{Kind: KindStation, Value: "100"},
		Event{Kind: KindDay, Which: Start, Value: "10"},
		Event{Kind: KindMonth, Which: End, Value: "5"},
		Event{Kind: KindDay, Which: End, Value: "1"},
	)

	_, err := s.Window()
	assert.ErrorIs(t, err, period.ErrInvalidWindow)
	assert.False(t, s.View().Ready)
}

func TestView(t *testing.T) {
	m := newMachine(t)
	s := apply(t, m, State{},
		Event{Kind: KindInstitution, Value: "RDA"},
		Event{Kind: KindStation, Value: "100"},
	)
	v := s.View()
	assert.Equal(t, DaySelected, v.StartPhase)
	assert.Equal(t, DaySelected, v.EndPhase)
	assert.True(t, v.Ready)
	assert.Equal(t, []int{2020, 2021, 2022, 2023, 2024}, v.Options.End.Years)

	text, err := MonthSelected.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "month_selected", string(text))
}
