package providers

import (
	"context"
	"net/url"
	"strconv"

	"github.com/i474232898/agri-weather-dashboard/internal/period"
	"github.com/i474232898/agri-weather-dashboard/internal/weather"
)

const (
	rdaPrefix      = "/api/rda/weather"
	rdaMaxPageSize = 100
)

// RDAProvider reads the agricultural research service network.
type RDAProvider struct {
	api *apiClient
}

func NewRDAProvider(cfg Config) *RDAProvider {
	return &RDAProvider{api: newAPIClient("rda", cfg)}
}

func (p *RDAProvider) Institution() weather.Institution {
	return weather.InstitutionRDA
}

func (p *RDAProvider) MaxPageSize() int {
	return rdaMaxPageSize
}

type rdaStation struct {
	StnCd     string `json:"stn_cd" validate:"required"`
	StnName   string `json:"stn_name" validate:"required"`
	DataCount int    `json:"data_count" validate:"gte=0"`
	FirstDate string `json:"first_date"`
	LastDate  string `json:"last_date"`
}

func (p *RDAProvider) Stations(ctx context.Context) ([]weather.Station, error) {
	var payload []rdaStation
	if err := p.api.getJSON(ctx, "stations", rdaPrefix+"/stations", nil, &payload); err != nil {
		return nil, err
	}

	rows := validRows(p.api, "stations", payload)
	stations := make([]weather.Station, 0, len(rows))
	for _, r := range rows {
		stations = append(stations, weather.Station{
			Institution: weather.InstitutionRDA,
			ID:          r.StnCd,
			Name:        r.StnName,
			DataCount:   r.DataCount,
			FirstDate:   r.FirstDate,
			LastDate:    r.LastDate,
		})
	}
	return stations, nil
}

// rdaObservation is shared by the daily and monthly range endpoints.
type rdaObservation struct {
	StnCd       string   `json:"stn_cd" validate:"required"`
	StnName     string   `json:"stn_name"`
	Date        string   `json:"date" validate:"required"`
	Temp        *float64 `json:"temp"`
	HghstArtmp  *float64 `json:"hghst_artmp"`
	LowstArtmp  *float64 `json:"lowst_artmp"`
	Hum         *float64 `json:"hum"`
	Widdir      *float64 `json:"widdir"`
	Wind        *float64 `json:"wind"`
	MaxWind     *float64 `json:"max_wind"`
	Rn          *float64 `json:"rn"`
	SunTime     *float64 `json:"sun_time"`
	Srqty       *float64 `json:"srqty"`
	CondensTime *float64 `json:"condens_time"`
	GrTemp      *float64 `json:"gr_temp"`
	SoilTemp    *float64 `json:"soil_temp"`
	SoilWt      *float64 `json:"soil_wt"`
}

func (p *RDAProvider) DailyRange(ctx context.Context, stationID string, w period.Window, offset, limit int) (weather.Page[weather.DailyRecord], error) {
	q := url.Values{}
	q.Set("start_date", dateQuery(w.Start))
	q.Set("end_date", dateQuery(w.End))
	q.Set("stn_cd", stationID)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(min(limit, rdaMaxPageSize)))

	var env pageEnvelope[rdaObservation]
	if err := p.api.getJSON(ctx, "daily_range", rdaPrefix+"/daily/range", q, &env); err != nil {
		return weather.Page[weather.DailyRecord]{}, err
	}
	if err := env.check("daily_range"); err != nil {
		return weather.Page[weather.DailyRecord]{}, err
	}

	page := weather.Page[weather.DailyRecord]{Total: env.Total, Offset: env.Offset, Limit: env.Limit, Fetched: len(env.Data)}
	for _, r := range validRows(p.api, "daily_range", env.Data) {
		date, err := period.ParseDate(r.Date)
		if err != nil {
			p.api.logger.Warn("dropping row with bad date", "endpoint", "daily_range", "date", r.Date)
			continue
		}
		page.Data = append(page.Data, weather.DailyRecord{
			StationID:      r.StnCd,
			StationName:    r.StnName,
			Date:           date,
			AvgTemp:        r.Temp,
			MaxTemp:        r.HghstArtmp,
			MinTemp:        r.LowstArtmp,
			Humidity:       r.Hum,
			WindSpeed:      r.Wind,
			MaxWindSpeed:   r.MaxWind,
			WindDirection:  r.Widdir,
			Rainfall:       r.Rn,
			SunshineHours:  r.SunTime,
			SolarRadiation: r.Srqty,
			DewHours:       r.CondensTime,
			GroundTemp:     r.GrTemp,
			SoilTemp:       r.SoilTemp,
			SoilMoisture:   r.SoilWt,
		})
	}
	return page, nil
}

func (p *RDAProvider) MonthlyRange(ctx context.Context, stationID, startMonth, endMonth string, offset, limit int) (weather.Page[weather.MonthlyRecord], error) {
	q := url.Values{}
	q.Set("start_month", startMonth)
	q.Set("end_month", endMonth)
	if stationID != "" {
		q.Set("stn_cd", stationID)
	}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(min(limit, rdaMaxPageSize)))

	var env pageEnvelope[rdaObservation]
	if err := p.api.getJSON(ctx, "monthly_range", rdaPrefix+"/monthly/range", q, &env); err != nil {
		return weather.Page[weather.MonthlyRecord]{}, err
	}
	if err := env.check("monthly_range"); err != nil {
		return weather.Page[weather.MonthlyRecord]{}, err
	}

	page := weather.Page[weather.MonthlyRecord]{Total: env.Total, Offset: env.Offset, Limit: env.Limit, Fetched: len(env.Data)}
	for _, r := range validRows(p.api, "monthly_range", env.Data) {
		page.Data = append(page.Data, weather.MonthlyRecord{
			StationID:      r.StnCd,
			StationName:    r.StnName,
			Month:          r.Date,
			AvgTemp:        r.Temp,
			MaxTemp:        r.HghstArtmp,
			MinTemp:        r.LowstArtmp,
			Humidity:       r.Hum,
			WindSpeed:      r.Wind,
			Rainfall:       r.Rn,
			SunshineHours:  r.SunTime,
			SolarRadiation: r.Srqty,
		})
	}
	return page, nil
}

type rdaRealtime struct {
	StnCd    string   `json:"stn_cd" validate:"required"`
	StnName  string   `json:"stn_name"`
	Province string   `json:"province"`
	Datetime string   `json:"datetime" validate:"required"`
	Temp     *float64 `json:"temp"`
	Hum      *float64 `json:"hum"`
	Wind     *float64 `json:"wind"`
	Widdir   *float64 `json:"widdir"`
	Rn       *float64 `json:"rn"`
}

func (p *RDAProvider) Realtime(ctx context.Context, limit int) ([]weather.RealtimeObservation, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(min(limit, 500)))

	var payload []rdaRealtime
	if err := p.api.getJSON(ctx, "realtime", rdaPrefix+"/realtime/latest", q, &payload); err != nil {
		return nil, err
	}

	rows := validRows(p.api, "realtime", payload)
	out := make([]weather.RealtimeObservation, 0, len(rows))
	for _, r := range rows {
		ts, ok := parseTimestamp(r.Datetime, p.api.loc)
		if !ok {
			p.api.logger.Warn("dropping row with bad timestamp", "endpoint", "realtime", "datetime", r.Datetime)
			continue
		}
		out = append(out, weather.RealtimeObservation{
			StationID:     r.StnCd,
			StationName:   r.StnName,
			Province:      r.Province,
			ObservedAt:    ts,
			Temp:          r.Temp,
			Humidity:      r.Hum,
			WindSpeed:     r.Wind,
			WindDirection: r.Widdir,
			Rainfall:      r.Rn,
		})
	}
	return out, nil
}
