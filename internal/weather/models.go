package weather

import (
	"fmt"
	"strings"
	"time"
)

// Institution identifies the agency a station belongs to.
type Institution string

const (
	// InstitutionRDA is the agricultural research service network.
	InstitutionRDA Institution = "RDA"
	// InstitutionKMA is the meteorological service ASOS network.
	InstitutionKMA Institution = "KMA"
)

// Institutions lists every supported institution.
var Institutions = []Institution{InstitutionRDA, InstitutionKMA}

// ParseInstitution accepts an institution code in any case.
func ParseInstitution(s string) (Institution, error) {
	switch Institution(strings.ToUpper(strings.TrimSpace(s))) {
	case InstitutionRDA:
		return InstitutionRDA, nil
	case InstitutionKMA:
		return InstitutionKMA, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownInstitution, s)
}

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown      Condition = "unknown"
	ConditionClear        Condition = "clear"
	ConditionPartlyCloudy Condition = "partly_cloudy"
	ConditionCloudy       Condition = "cloudy"
	ConditionRain         Condition = "rain"
	ConditionSnow         Condition = "snow"
)

// Station is an observation point. The working set per institution is
// replaced wholesale on every reload.
type Station struct {
	Institution Institution `json:"institution"`
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Province    string      `json:"province"`
	DataCount   int         `json:"dataCount"`
	FirstDate   string      `json:"firstDate"`
	LastDate    string      `json:"lastDate"`
}

// DailyRecord is one day of observations at a station. Numeric fields are nil
// when the source did not report them.
type DailyRecord struct {
	StationID   string    `json:"stationId"`
	StationName string    `json:"stationName"`
	Date        time.Time `json:"date"`

	AvgTemp        *float64 `json:"avgTemp"`
	MaxTemp        *float64 `json:"maxTemp"`
	MinTemp        *float64 `json:"minTemp"`
	Humidity       *float64 `json:"humidity"`
	WindSpeed      *float64 `json:"windSpeed"`
	MaxWindSpeed   *float64 `json:"maxWindSpeed,omitempty"`
	WindDirection  *float64 `json:"windDirection,omitempty"`
	Rainfall       *float64 `json:"rainfall"`
	SunshineHours  *float64 `json:"sunshineHours,omitempty"`
	SolarRadiation *float64 `json:"solarRadiation"`
	DewHours       *float64 `json:"dewHours,omitempty"`
	GroundTemp     *float64 `json:"groundTemp,omitempty"`
	SoilTemp       *float64 `json:"soilTemp,omitempty"`
	SoilMoisture   *float64 `json:"soilMoisture,omitempty"`
	SnowDepth      *float64 `json:"snowDepth,omitempty"`
	CloudAmount    *float64 `json:"cloudAmount,omitempty"`
	Phenomena      string   `json:"phenomena,omitempty"`
}

// MonthlyRecord is one month of aggregated observations at an agricultural station.
type MonthlyRecord struct {
	StationID   string `json:"stationId"`
	StationName string `json:"stationName"`
	Month       string `json:"month"` // YYYY-MM

	AvgTemp        *float64 `json:"avgTemp"`
	MaxTemp        *float64 `json:"maxTemp"`
	MinTemp        *float64 `json:"minTemp"`
	Humidity       *float64 `json:"humidity"`
	WindSpeed      *float64 `json:"windSpeed"`
	Rainfall       *float64 `json:"rainfall"`
	SunshineHours  *float64 `json:"sunshineHours"`
	SolarRadiation *float64 `json:"solarRadiation"`
}

// RealtimeObservation is the latest reading of a station or region.
type RealtimeObservation struct {
	StationID     string    `json:"stationId"`
	StationName   string    `json:"stationName"`
	Province      string    `json:"province"`
	ObservedAt    time.Time `json:"observedAt"`
	Temp          *float64  `json:"temp"`
	Humidity      *float64  `json:"humidity"`
	WindSpeed     *float64  `json:"windSpeed"`
	WindDirection *float64  `json:"windDirection"`
	WindCompass   string    `json:"windCompass,omitempty"`
	Rainfall      *float64  `json:"rainfall"`
	Condition     Condition `json:"condition,omitempty"`
}

// ShortForecastEntry is one category value of the short-range forecast grid.
type ShortForecastEntry struct {
	RegionName string    `json:"regionName"`
	BaseDate   string    `json:"baseDate"`
	BaseTime   string    `json:"baseTime"`
	FcstDate   time.Time `json:"fcstDate"`
	FcstTime   string    `json:"fcstTime"` // HHMM
	Category   string    `json:"category"`
	Value      string    `json:"value"`
}

// HalfDay is a mid-range forecast period.
type HalfDay string

const (
	HalfDayAM HalfDay = "Am"
	HalfDayPM HalfDay = "Pm"
)

// MidForecastEntry is one half-day of the medium-range forecast.
type MidForecastEntry struct {
	RegionID     string    `json:"regionId"`
	RegionName   string    `json:"regionName"`
	IssuedAt     string    `json:"issuedAt"`
	ForecastDate time.Time `json:"forecastDate"`
	Period       HalfDay   `json:"period"`
	RainProb     *float64  `json:"rainProb"`
	Condition    string    `json:"conditionText"`
	TempMin      *float64  `json:"tempMin"`
	TempMax      *float64  `json:"tempMax"`
}

// ForecastRegion is a region with published forecasts.
type ForecastRegion struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	DataCount int    `json:"dataCount"`
}

// Page is one slice of a paginated result set.
type Page[T any] struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Data   []T `json:"data"`

	// Fetched is the number of upstream rows the page consumed, including
	// rows dropped during validation. Offsets advance by Fetched.
	Fetched int `json:"-"`
}
