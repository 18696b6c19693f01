package weather

import (
	"time"

	"github.com/i474232898/agri-weather-dashboard/internal/period"
	"github.com/i474232898/agri-weather-dashboard/internal/region"
)

// NoonTime is the short-range forecast slot shown for each day.
const NoonTime = "1200"

// ShortForecastDay is the noon forecast of one day, keyed by category code
// (TMP, SKY, PTY, POP, ...).
type ShortForecastDay struct {
	Date      time.Time         `json:"date"`
	Values    map[string]string `json:"values"`
	Condition Condition         `json:"condition"`
}

// MidForecastDay pairs the morning and afternoon forecasts of one day.
type MidForecastDay struct {
	Date        time.Time         `json:"date"`
	AM          *MidForecastEntry `json:"am"`
	PM          *MidForecastEntry `json:"pm"`
	AMCondition Condition         `json:"amCondition"`
	PMCondition Condition         `json:"pmCondition"`
}

// ProvinceCard is the representative realtime reading placed on a province.
type ProvinceCard struct {
	Province    string              `json:"province"`
	Coordinate  region.Coordinate   `json:"coordinate"`
	Observation RealtimeObservation `json:"observation"`
}

type dayKey string

func keyOf(t time.Time) dayKey {
	return dayKey(period.FormatDate(t))
}

// GroupShortByDay returns one entry per day from today+from to today+to,
// holding the noon values of that day. Days without data have empty values.
func GroupShortByDay(entries []ShortForecastEntry, today time.Time, from, to int) []ShortForecastDay {
	byDay := make(map[dayKey]map[string]string)
	for _, e := range entries {
		if e.FcstTime != NoonTime {
			continue
		}
		k := keyOf(e.FcstDate)
		if byDay[k] == nil {
			byDay[k] = make(map[string]string)
		}
		// Entries arrive newest issue first; keep the first value seen.
		if _, exists := byDay[k][e.Category]; !exists {
			byDay[k][e.Category] = e.Value
		}
	}

	days := make([]ShortForecastDay, 0, to-from+1)
	for i := from; i <= to; i++ {
		date := period.CivilDate(today).AddDate(0, 0, i)
		d := ShortForecastDay{Date: date, Values: byDay[keyOf(date)], Condition: ConditionUnknown}
		if d.Values == nil {
			d.Values = map[string]string{}
		} else {
			d.Condition = ConditionFromSkyPty(parseCode(d.Values["SKY"]), parseCode(d.Values["PTY"]))
		}
		days = append(days, d)
	}
	return days
}

// GroupMidByDay returns one entry per day from today+from to today+to with
// the AM and PM forecasts of that day.
func GroupMidByDay(entries []MidForecastEntry, today time.Time, from, to int) []MidForecastDay {
	type halves struct{ am, pm *MidForecastEntry }
	byDay := make(map[dayKey]*halves)
	for i := range entries {
		e := &entries[i]
		k := keyOf(e.ForecastDate)
		h := byDay[k]
		if h == nil {
			h = &halves{}
			byDay[k] = h
		}
		switch e.Period {
		case HalfDayAM:
			if h.am == nil {
				h.am = e
			}
		case HalfDayPM:
			if h.pm == nil {
				h.pm = e
			}
		}
	}

	days := make([]MidForecastDay, 0, to-from+1)
	for i := from; i <= to; i++ {
		date := period.CivilDate(today).AddDate(0, 0, i)
		d := MidForecastDay{Date: date, AMCondition: ConditionUnknown, PMCondition: ConditionUnknown}
		if h := byDay[keyOf(date)]; h != nil {
			d.AM, d.PM = h.am, h.pm
			if h.am != nil {
				d.AMCondition = ConditionFromText(h.am.Condition)
			}
			if h.pm != nil {
				d.PMCondition = ConditionFromText(h.pm.Condition)
			}
		}
		days = append(days, d)
	}
	return days
}

// RepresentativeCards picks the first observation of each target province,
// in target order. Provinces without a reading or a card position are skipped.
func RepresentativeCards(obs []RealtimeObservation, targets []string, geo region.Geography) []ProvinceCard {
	first := make(map[string]RealtimeObservation, len(targets))
	for _, o := range obs {
		if _, ok := first[o.Province]; !ok {
			first[o.Province] = o
		}
	}

	cards := make([]ProvinceCard, 0, len(targets))
	for _, p := range targets {
		o, ok := first[p]
		if !ok {
			continue
		}
		c, ok := geo.Center(p)
		if !ok {
			continue
		}
		cards = append(cards, ProvinceCard{Province: p, Coordinate: c, Observation: o})
	}
	return cards
}
