package period

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveQueryBounds(t *testing.T) {
	today := Date(2024, time.June, 15)

	tests := []struct {
		name         string
		first, last  string
		wantStart    time.Time
		wantEnd      time.Time
		wantDefStart time.Time
	}{
		{
			name:         "end capped by last date",
			first:        "2020-01-01",
			last:         "2024-06-10",
			wantStart:    Date(2020, time.January, 1),
			wantEnd:      Date(2024, time.June, 10),
			wantDefStart: Date(2024, time.May, 10),
		},
		{
			name:         "end capped by reporting lag",
			first:        "2020-01-01",
			last:         "2024-06-15",
			wantStart:    Date(2020, time.January, 1),
			wantEnd:      Date(2024, time.June, 13),
			wantDefStart: Date(2024, time.May, 13),
		},
		{
			name:         "short range defaults to whole range",
			first:        "2024-06-01",
			last:         "2024-06-12",
			wantStart:    Date(2024, time.June, 1),
			wantEnd:      Date(2024, time.June, 12),
			wantDefStart: Date(2024, time.June, 1),
		},
		{
			name:         "timestamps are truncated to dates",
			first:        "2021-03-04T00:00:00",
			last:         "2024-06-12T09:30:00+09:00",
			wantStart:    Date(2021, time.March, 4),
			wantEnd:      Date(2024, time.June, 12),
			wantDefStart: Date(2024, time.May, 12),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ResolveQueryBounds(tt.first, tt.last, today, DefaultLagDays)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, res.Bounds.Start)
			assert.Equal(t, tt.wantEnd, res.Bounds.End)
			assert.Equal(t, tt.wantDefStart, res.Default.Start)
			assert.Equal(t, tt.wantEnd, res.Default.End)
			assert.False(t, res.Bounds.End.After(today.AddDate(0, 0, -2)))
		})
	}
}

func TestResolveQueryBoundsWorkedExample(t *testing.T) {
	res, err := ResolveQueryBounds("2020-01-01", "2024-06-10", Date(2024, time.June, 15), DefaultLagDays)
	require.NoError(t, err)
	// last_date is earlier than today-2, so it wins.
	assert.Equal(t, "2024-06-10", FormatDate(res.Bounds.End))

	res, err = ResolveQueryBounds("2020-01-01", "2024-12-31", Date(2024, time.June, 15), DefaultLagDays)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-13", FormatDate(res.Bounds.End))
	assert.Equal(t, "2024-05-13", FormatDate(res.Default.Start))
}

func TestResolveQueryBoundsUnavailable(t *testing.T) {
	today := Date(2024, time.June, 15)
	tests := []struct {
		name        string
		first, last string
	}{
		{"missing first", "", "2024-01-01"},
		{"missing last", "2020-01-01", ""},
		{"malformed first", "2020/01/01", "2024-01-01"},
		{"malformed last", "2020-01-01", "yesterday"},
		{"first after usable end", "2024-06-14", "2024-06-20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveQueryBounds(tt.first, tt.last, today, DefaultLagDays)
			require.ErrorIs(t, err, ErrBoundsUnavailable)
		})
	}
}

func TestDefaultStartClampsMonthEnd(t *testing.T) {
	res, err := ResolveQueryBounds("2020-01-01", "2024-03-31", Date(2024, time.May, 1), DefaultLagDays)
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.February, 29), res.Default.Start)
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, DaysIn(2024, time.February))
	assert.Equal(t, 28, DaysIn(2023, time.February))
	assert.Equal(t, 28, DaysIn(1900, time.February))
	assert.Equal(t, 29, DaysIn(2000, time.February))
	assert.Equal(t, 31, DaysIn(2024, time.December))
	assert.Equal(t, 30, DaysIn(2024, time.April))
}

func TestOptions(t *testing.T) {
	b := Bounds{Start: Date(2022, time.March, 15), End: Date(2024, time.February, 10)}

	assert.Equal(t, []int{2022, 2023, 2024}, YearOptions(b))

	assert.Equal(t, []int{3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, MonthOptions(b, 2022))
	assert.Len(t, MonthOptions(b, 2023), 12)
	assert.Equal(t, []int{1, 2}, MonthOptions(b, 2024))
	assert.Empty(t, MonthOptions(b, 2021))
	assert.Empty(t, MonthOptions(b, 2025))

	days := DayOptions(b, 2022, 3)
	require.NotEmpty(t, days)
	assert.Equal(t, 15, days[0])
	assert.Equal(t, 31, days[len(days)-1])

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, DayOptions(b, 2024, 2))
	assert.Len(t, DayOptions(b, 2023, 2), 28)
	assert.Empty(t, DayOptions(b, 2022, 2))
	assert.Empty(t, DayOptions(b, 2024, 3))
	assert.Empty(t, DayOptions(b, 2023, 13))
}

func TestDayOptionsLeapFebruary(t *testing.T) {
	b := Bounds{Start: Date(2020, time.January, 1), End: Date(2024, time.December, 31)}
	assert.Len(t, DayOptions(b, 2024, 2), 29)
	assert.Len(t, DayOptions(b, 2023, 2), 28)
}

func TestBoundsValidate(t *testing.T) {
	b := Bounds{Start: Date(2024, time.January, 1), End: Date(2024, time.June, 13)}

	require.NoError(t, b.Validate(Window{Start: Date(2024, time.May, 13), End: Date(2024, time.June, 13)}))
	require.NoError(t, b.Validate(Window{Start: Date(2024, time.June, 1), End: Date(2024, time.June, 1)}))

	err := b.Validate(Window{Start: Date(2024, time.June, 2), End: Date(2024, time.June, 1)})
	require.ErrorIs(t, err, ErrInvalidWindow)

	err = b.Validate(Window{Start: Date(2023, time.December, 31), End: Date(2024, time.June, 1)})
	require.ErrorIs(t, err, ErrInvalidWindow)

	err = b.Validate(Window{Start: Date(2024, time.June, 1), End: Date(2024, time.June, 14)})
	require.ErrorIs(t, err, ErrInvalidWindow)
}

func TestResolverUsesLocalDate(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	r := NewResolver(seoul, DefaultLagDays)
	// 16:00 UTC on June 14 is already June 15 in Seoul.
	r.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.June, 14, 16, 0, 0, 0, time.UTC)))

	assert.Equal(t, Date(2024, time.June, 15), r.Today())

	res, err := r.Resolve("2020-01-01", "2024-12-31")
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.June, 13), res.Bounds.End)
}

func TestAddMonths(t *testing.T) {
	assert.Equal(t, Date(2024, time.February, 29), AddMonths(Date(2024, time.March, 31), -1))
	assert.Equal(t, Date(2023, time.December, 15), AddMonths(Date(2024, time.January, 15), -1))
	assert.Equal(t, Date(2024, time.April, 30), AddMonths(Date(2024, time.March, 31), 1))
}
