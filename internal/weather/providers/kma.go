package providers

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/agri-weather-dashboard/internal/period"
	"github.com/i474232898/agri-weather-dashboard/internal/weather"
)

const (
	kmaMaxPageSize  = 10000
	kmaMaxRealtime  = 500
	kmaMaxForecasts = 100
)

// KMAProvider reads the meteorological service: ASOS daily records, the
// realtime grid and the short/mid-range forecasts.
type KMAProvider struct {
	api *apiClient
}

func NewKMAProvider(cfg Config) *KMAProvider {
	return &KMAProvider{api: newAPIClient("kma", cfg)}
}

func (p *KMAProvider) Institution() weather.Institution {
	return weather.InstitutionKMA
}

func (p *KMAProvider) MaxPageSize() int {
	return kmaMaxPageSize
}

type kmaStation struct {
	StnID     int    `json:"stn_id" validate:"required,gt=0"`
	StnNm     string `json:"stn_nm" validate:"required"`
	DataCount int    `json:"data_count" validate:"gte=0"`
	FirstDate string `json:"first_date"`
	LastDate  string `json:"last_date"`
}

func (p *KMAProvider) Stations(ctx context.Context) ([]weather.Station, error) {
	var payload []kmaStation
	if err := p.api.getJSON(ctx, "stations", "/api/kma/asos/stations", nil, &payload); err != nil {
		return nil, err
	}

	rows := validRows(p.api, "stations", payload)
	stations := make([]weather.Station, 0, len(rows))
	for _, r := range rows {
		stations = append(stations, weather.Station{
			Institution: weather.InstitutionKMA,
			ID:          strconv.Itoa(r.StnID),
			Name:        r.StnNm,
			DataCount:   r.DataCount,
			FirstDate:   r.FirstDate,
			LastDate:    r.LastDate,
		})
	}
	return stations, nil
}

type asosDaily struct {
	StnID  int      `json:"stn_id" validate:"required"`
	StnNm  string   `json:"stn_nm"`
	Tm     string   `json:"tm" validate:"required,civildate"`
	AvgTa  *float64 `json:"avg_ta"`
	MinTa  *float64 `json:"min_ta"`
	MaxTa  *float64 `json:"max_ta"`
	SumRn  *float64 `json:"sum_rn"`
	AvgWs  *float64 `json:"avg_ws"`
	AvgRhm *float64 `json:"avg_rhm"`
	SumSs  *float64 `json:"sum_ss_hr"`
	SumGsr *float64 `json:"sum_gsr"`
	DdMes  *float64 `json:"dd_mes"`
	AvgTca *float64 `json:"avg_tca"`
	AvgTs  *float64 `json:"avg_ts"`
	Iscs   string   `json:"iscs"`
}

func (p *KMAProvider) DailyRange(ctx context.Context, stationID string, w period.Window, offset, limit int) (weather.Page[weather.DailyRecord], error) {
	q := url.Values{}
	q.Set("start_date", dateQuery(w.Start))
	q.Set("end_date", dateQuery(w.End))
	q.Set("stn_id", stationID)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(min(limit, kmaMaxPageSize)))

	var env pageEnvelope[asosDaily]
	if err := p.api.getJSON(ctx, "asos_range", "/api/kma/asos/range", q, &env); err != nil {
		return weather.Page[weather.DailyRecord]{}, err
	}
	if err := env.check("asos_range"); err != nil {
		return weather.Page[weather.DailyRecord]{}, err
	}

	page := weather.Page[weather.DailyRecord]{Total: env.Total, Offset: env.Offset, Limit: env.Limit, Fetched: len(env.Data)}
	for _, r := range validRows(p.api, "asos_range", env.Data) {
		// civildate validation guarantees the parse succeeds.
		date, _ := period.ParseDate(r.Tm)
		page.Data = append(page.Data, weather.DailyRecord{
			StationID:      strconv.Itoa(r.StnID),
			StationName:    r.StnNm,
			Date:           date,
			AvgTemp:        r.AvgTa,
			MaxTemp:        r.MaxTa,
			MinTemp:        r.MinTa,
			Humidity:       r.AvgRhm,
			WindSpeed:      r.AvgWs,
			Rainfall:       r.SumRn,
			SunshineHours:  r.SumSs,
			SolarRadiation: r.SumGsr,
			GroundTemp:     r.AvgTs,
			SnowDepth:      r.DdMes,
			CloudAmount:    r.AvgTca,
			Phenomena:      r.Iscs,
		})
	}
	return page, nil
}

type realtimePivot struct {
	Sido       string   `json:"sido"`
	RegionName string   `json:"region_name" validate:"required"`
	BaseDate   string   `json:"base_date" validate:"required,civildate"`
	BaseTime   string   `json:"base_time" validate:"required,len=4,numeric"`
	T1H        *float64 `json:"T1H"`
	RN1        *float64 `json:"RN1"`
	REH        *float64 `json:"REH"`
	PTY        *float64 `json:"PTY"`
	VEC        *float64 `json:"VEC"`
	WSD        *float64 `json:"WSD"`
}

func (p *KMAProvider) Realtime(ctx context.Context, limit int) ([]weather.RealtimeObservation, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(min(limit, kmaMaxRealtime)))

	var payload []realtimePivot
	if err := p.api.getJSON(ctx, "realtime", "/api/kma/realtime/latest/pivot", q, &payload); err != nil {
		return nil, err
	}

	rows := validRows(p.api, "realtime", payload)
	out := make([]weather.RealtimeObservation, 0, len(rows))
	for _, r := range rows {
		day, _ := period.ParseDate(r.BaseDate)
		hour, _ := strconv.Atoi(r.BaseTime[:2])
		minute, _ := strconv.Atoi(r.BaseTime[2:])
		out = append(out, weather.RealtimeObservation{
			StationID:     r.RegionName,
			StationName:   r.RegionName,
			Province:      r.Sido,
			ObservedAt:    time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, p.api.loc),
			Temp:          r.T1H,
			Humidity:      r.REH,
			WindSpeed:     r.WSD,
			WindDirection: r.VEC,
			Rainfall:      r.RN1,
			Condition:     weather.ConditionFromPty(r.PTY),
		})
	}
	return out, nil
}

type shortForecast struct {
	RegionName string `json:"region_name" validate:"required"`
	BaseDate   string `json:"base_date"`
	BaseTime   string `json:"base_time"`
	FcstDate   string `json:"fcst_date" validate:"required,civildate"`
	FcstTime   string `json:"fcst_time" validate:"required"`
	Category   string `json:"category" validate:"required"`
	FcstValue  string `json:"fcst_value"`
}

func (p *KMAProvider) ShortForecast(ctx context.Context, region string, limit int) ([]weather.ShortForecastEntry, error) {
	q := url.Values{}
	if region != "" {
		q.Set("region_name", region)
	}
	q.Set("limit", strconv.Itoa(min(limit, kmaMaxForecasts)))

	var payload []shortForecast
	if err := p.api.getJSON(ctx, "forecast_short", "/api/kma/forecast/short/latest", q, &payload); err != nil {
		return nil, err
	}

	rows := validRows(p.api, "forecast_short", payload)
	out := make([]weather.ShortForecastEntry, 0, len(rows))
	for _, r := range rows {
		date, _ := period.ParseDate(r.FcstDate)
		out = append(out, weather.ShortForecastEntry{
			RegionName: r.RegionName,
			BaseDate:   r.BaseDate,
			BaseTime:   r.BaseTime,
			FcstDate:   date,
			FcstTime:   r.FcstTime,
			Category:   r.Category,
			Value:      r.FcstValue,
		})
	}
	return out, nil
}

type midForecast struct {
	RegID            string   `json:"reg_id"`
	RegionName       string   `json:"region_name" validate:"required"`
	TmFc             string   `json:"tm_fc"`
	ForecastDate     string   `json:"forecast_date" validate:"required,civildate"`
	TimePeriod       string   `json:"time_period" validate:"required,oneof=Am Pm"`
	RainProb         *float64 `json:"rain_prob"`
	WeatherCondition string   `json:"weather_condition"`
	TempMin          *float64 `json:"temp_min"`
	TempMax          *float64 `json:"temp_max"`
}

func (p *KMAProvider) MidForecast(ctx context.Context, region string, limit int) ([]weather.MidForecastEntry, error) {
	q := url.Values{}
	if region != "" {
		q.Set("region_name", region)
	}
	q.Set("limit", strconv.Itoa(min(limit, kmaMaxForecasts)))

	var payload []midForecast
	if err := p.api.getJSON(ctx, "forecast_mid", "/api/kma/forecast/mid/latest", q, &payload); err != nil {
		return nil, err
	}

	rows := validRows(p.api, "forecast_mid", payload)
	out := make([]weather.MidForecastEntry, 0, len(rows))
	for _, r := range rows {
		date, _ := period.ParseDate(r.ForecastDate)
		out = append(out, weather.MidForecastEntry{
			RegionID:     r.RegID,
			RegionName:   r.RegionName,
			IssuedAt:     r.TmFc,
			ForecastDate: date,
			Period:       weather.HalfDay(r.TimePeriod),
			RainProb:     r.RainProb,
			Condition:    r.WeatherCondition,
			TempMin:      r.TempMin,
			TempMax:      r.TempMax,
		})
	}
	return out, nil
}

type forecastRegion struct {
	RegID      string `json:"reg_id"`
	RegionName string `json:"region_name" validate:"required"`
	DataCount  int    `json:"data_count" validate:"gte=0"`
}

func (p *KMAProvider) ShortForecastRegions(ctx context.Context) ([]weather.ForecastRegion, error) {
	return p.forecastRegions(ctx, "forecast_short_regions", "/api/kma/forecast/short/regions")
}

func (p *KMAProvider) MidForecastRegions(ctx context.Context) ([]weather.ForecastRegion, error) {
	return p.forecastRegions(ctx, "forecast_mid_regions", "/api/kma/forecast/mid/regions")
}

func (p *KMAProvider) forecastRegions(ctx context.Context, endpoint, path string) ([]weather.ForecastRegion, error) {
	var payload []forecastRegion
	if err := p.api.getJSON(ctx, endpoint, path, nil, &payload); err != nil {
		return nil, err
	}
	rows := validRows(p.api, endpoint, payload)
	out := make([]weather.ForecastRegion, 0, len(rows))
	for _, r := range rows {
		out = append(out, weather.ForecastRegion{ID: r.RegID, Name: r.RegionName, DataCount: r.DataCount})
	}
	return out, nil
}

var (
	_ weather.StationSource  = (*KMAProvider)(nil)
	_ weather.ForecastSource = (*KMAProvider)(nil)
	_ weather.StationSource  = (*RDAProvider)(nil)
	_ weather.MonthlySource  = (*RDAProvider)(nil)
)
