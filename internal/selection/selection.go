// Package selection models the cascading institution → province → station →
// year → month → day pickers as a single state machine.
package selection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/agri-weather-dashboard/internal/period"
	"github.com/i474232898/agri-weather-dashboard/internal/weather"
)

var (
	// ErrNotReady is returned when an event needs an upstream choice that has not been made.
	ErrNotReady = errors.New("selection incomplete")
	// ErrOptionOutOfRange is returned when a value is not among the offered options.
	ErrOptionOutOfRange = errors.New("option out of range")
	// ErrInvalidEvent is returned for malformed events, such as a date event without Which.
	ErrInvalidEvent = errors.New("invalid selection event")
)

// Phase is how far one date pick has progressed.
type Phase int

// A pick moves forward one phase per choice and falls back to Unselected
// or StationSelected when an upstream choice changes.
const (
	Unselected       Phase = iota // nothing chosen upstream of the pick
	ProvinceSelected              // province chosen, no station yet
	StationSelected               // station chosen, bounds known
	YearSelected
	MonthSelected
	DaySelected // complete date
)

func (p Phase) String() string {
	switch p {
	case Unselected:
		return "unselected"
	case ProvinceSelected:
		return "province_selected"
	case StationSelected:
		return "station_selected"
	case YearSelected:
		return "year_selected"
	case MonthSelected:
		return "month_selected"
	case DaySelected:
		return "day_selected"
	}
	return "phase(" + strconv.Itoa(int(p)) + ")"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Which names one of the two date picks.
type Which string

const (
	Start Which = "start" // first day of the query window
	End   Which = "end"   // last day of the query window, inclusive
)

// Kind is the kind of selection event.
type Kind string

// Event kinds, in cascade order. A choice resets every field after it.
const (
	KindInstitution Kind = "institution"
	KindProvince    Kind = "province"
	KindStation     Kind = "station"
	KindYear        Kind = "year"
	KindMonth       Kind = "month"
	KindDay         Kind = "day"
)

// Event is one user choice.
type Event struct {
	Kind  Kind   `json:"kind" validate:"required,oneof=institution province station year month day"`
	Value string `json:"value"`
	// Which is required for year, month and day events.
	Which Which `json:"which,omitempty" validate:"omitempty,oneof=start end"`
}

// Pick is a partially or fully chosen date. Zero fields are unchosen.
type Pick struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
}

func (p Pick) date() time.Time {
	return period.Date(p.Year, time.Month(p.Month), p.Day)
}

func pickOf(d time.Time) Pick {
	return Pick{Year: d.Year(), Month: int(d.Month()), Day: d.Day()}
}

// State is the whole selector group. Every dependent field is derived by Apply.
type State struct {
	Institution weather.Institution `json:"institution,omitempty"`
	Province    string              `json:"province,omitempty"`
	Station     *weather.Station    `json:"station,omitempty"`
	Resolution  *period.Resolution  `json:"resolution,omitempty"`

	// BoundsUnavailable is set when the selected station has unusable date
	// metadata; every date pick is disabled.
	BoundsUnavailable bool `json:"boundsUnavailable,omitempty"`

	Start Pick `json:"start"`
	End   Pick `json:"end"`
}

// Phase reports how far the given pick has progressed.
func (s State) Phase(which Which) Phase {
	if s.Station == nil {
		if s.Province != "" {
			return ProvinceSelected
		}
		return Unselected
	}
	p := s.pick(which)
	switch {
	case p.Year == 0:
		return StationSelected
	case p.Month == 0:
		return YearSelected
	case p.Day == 0:
		return MonthSelected
	}
	return DaySelected
}

func (s State) pick(which Which) Pick {
	if which == End {
		return s.End
	}
	return s.Start
}

func (s *State) setPick(which Which, p Pick) {
	if which == End {
		s.End = p
		return
	}
	s.Start = p
}

// PickOptions are the values currently offered for one date pick.
type PickOptions struct {
	Years  []int `json:"years"`
	Months []int `json:"months"`
	Days   []int `json:"days"`
}

// Options are the offered values for both picks.
type Options struct {
	Start PickOptions `json:"start"`
	End   PickOptions `json:"end"`
}

// Options derives the selectable values from the current state. Everything
// is empty while bounds are unknown.
func (s State) Options() Options {
	return Options{Start: s.pickOptions(s.Start), End: s.pickOptions(s.End)}
}

func (s State) pickOptions(p Pick) PickOptions {
	var o PickOptions
	if s.Resolution == nil {
		return o
	}
	b := s.Resolution.Bounds
	o.Years = period.YearOptions(b)
	if p.Year != 0 {
		o.Months = period.MonthOptions(b, p.Year)
	}
	if p.Month != 0 {
		o.Days = period.DayOptions(b, p.Year, p.Month)
	}
	return o
}

// Ready reports whether a query may be issued.
func (s State) Ready() bool {
	_, err := s.Window()
	return err == nil
}

// Window returns the chosen query window once both picks are complete.
func (s State) Window() (period.Window, error) {
	if s.Resolution == nil {
		if s.BoundsUnavailable {
			return period.Window{}, period.ErrBoundsUnavailable
		}
		return period.Window{}, fmt.Errorf("%w: no station selected", ErrNotReady)
	}
	if s.Phase(Start) != DaySelected || s.Phase(End) != DaySelected {
		return period.Window{}, fmt.Errorf("%w: start and end dates are required", ErrNotReady)
	}
	w := period.Window{Start: s.Start.date(), End: s.End.date()}
	if err := s.Resolution.Bounds.Validate(w); err != nil {
		return period.Window{}, err
	}
	return w, nil
}

// View is the client-facing rendering of a state.
type View struct {
	State
	StartPhase Phase   `json:"startPhase"`
	EndPhase   Phase   `json:"endPhase"`
	Options    Options `json:"options"`
	Ready      bool    `json:"ready"`
}

func (s State) View() View {
	return View{
		State:      s,
		StartPhase: s.Phase(Start),
		EndPhase:   s.Phase(End),
		Options:    s.Options(),
		Ready:      s.Ready(),
	}
}

// StationLookup finds stations by institution and id.
type StationLookup interface {
	Station(ctx context.Context, inst weather.Institution, id string) (weather.Station, error)
}

// Machine applies events to states.
type Machine struct {
	stations StationLookup
	resolver *period.Resolver
}

func NewMachine(stations StationLookup, resolver *period.Resolver) *Machine {
	return &Machine{stations: stations, resolver: resolver}
}

// Apply is the single transition function. It returns the next state, or the
// unchanged state and an error when the event is not allowed.
//
// Any upstream change resets everything downstream of it: institution resets
// all, province clears the station and dates, station clears the dates and
// seeds them with the default window, year clears that pick's month and day,
// and month clears that pick's day.
func (m *Machine) Apply(ctx context.Context, s State, ev Event) (State, error) {
	switch ev.Kind {
	case KindInstitution:
		inst, err := weather.ParseInstitution(ev.Value)
		if err != nil {
			return s, err
		}
		return State{Institution: inst}, nil

	case KindProvince:
		if s.Institution == "" {
			return s, fmt.Errorf("%w: choose an institution first", ErrNotReady)
		}
		province := strings.TrimSpace(ev.Value)
		if province == "" {
			return s, fmt.Errorf("%w: empty province", ErrInvalidEvent)
		}
		return State{Institution: s.Institution, Province: province}, nil

	case KindStation:
		return m.selectStation(ctx, s, strings.TrimSpace(ev.Value))

	case KindYear, KindMonth, KindDay:
		return applyDate(s, ev)
	}
	return s, fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, ev.Kind)
}

func (m *Machine) selectStation(ctx context.Context, s State, id string) (State, error) {
	if s.Institution == "" {
		return s, fmt.Errorf("%w: choose an institution first", ErrNotReady)
	}
	if id == "" {
		return s, fmt.Errorf("%w: empty station", ErrInvalidEvent)
	}
	st, err := m.stations.Station(ctx, s.Institution, id)
	if err != nil {
		return s, err
	}
	if s.Province != "" && st.Province != s.Province {
		return s, fmt.Errorf("%w: station %s is not in %s", ErrOptionOutOfRange, id, s.Province)
	}

	next := State{Institution: s.Institution, Province: st.Province, Station: &st}
	res, err := m.resolver.Resolve(st.FirstDate, st.LastDate)
	if err != nil {
		if !errors.Is(err, period.ErrBoundsUnavailable) {
			return s, err
		}
		next.BoundsUnavailable = true
		return next, nil
	}
	next.Resolution = &res
	next.Start = pickOf(res.Default.Start)
	next.End = pickOf(res.Default.End)
	return next, nil
}

func applyDate(s State, ev Event) (State, error) {
	if ev.Which != Start && ev.Which != End {
		return s, fmt.Errorf("%w: %s event needs which=start|end", ErrInvalidEvent, ev.Kind)
	}
	if s.Station == nil {
		return s, fmt.Errorf("%w: choose a station first", ErrNotReady)
	}
	if s.Resolution == nil {
		return s, period.ErrBoundsUnavailable
	}
	v, err := strconv.Atoi(strings.TrimSpace(ev.Value))
	if err != nil {
		return s, fmt.Errorf("%w: %s %q is not a number", ErrInvalidEvent, ev.Kind, ev.Value)
	}

	opts := s.pickOptions(s.pick(ev.Which))
	p := s.pick(ev.Which)
	switch ev.Kind {
	case KindYear:
		if !slices.Contains(opts.Years, v) {
			return s, fmt.Errorf("%w: year %d", ErrOptionOutOfRange, v)
		}
		p = Pick{Year: v}
	case KindMonth:
		if p.Year == 0 {
			return s, fmt.Errorf("%w: choose a year first", ErrNotReady)
		}
		if !slices.Contains(opts.Months, v) {
			return s, fmt.Errorf("%w: month %d of %d", ErrOptionOutOfRange, v, p.Year)
		}
		p = Pick{Year: p.Year, Month: v}
	case KindDay:
		if p.Month == 0 {
			return s, fmt.Errorf("%w: choose a month first", ErrNotReady)
		}
		if !slices.Contains(opts.Days, v) {
			return s, fmt.Errorf("%w: day %d of %d-%02d", ErrOptionOutOfRange, v, p.Year, p.Month)
		}
		p.Day = v
	}

	next := s
	next.setPick(ev.Which, p)
	return next, nil
}
