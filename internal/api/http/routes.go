package httpapi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/agri-weather-dashboard/internal/observability"
	"github.com/i474232898/agri-weather-dashboard/internal/period"
	"github.com/i474232898/agri-weather-dashboard/internal/selection"
	"github.com/i474232898/agri-weather-dashboard/internal/store"
	"github.com/i474232898/agri-weather-dashboard/internal/weather"
)

var validate = validator.New()

// Deps are the collaborators the HTTP handlers need.
type Deps struct {
	Service  *weather.Service
	Sessions *store.SessionStore
	Machine  *selection.Machine
	Metrics  *observability.Metrics
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	service := deps.Service
	v1 := app.Group("/api/v1")

	registerForecastRoutes(v1, service)
	registerSessionRoutes(v1, deps)

	v1.Get("/rda/monthly", func(c *fiber.Ctx) error {
		var req monthlyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		page, err := service.MonthlyHistory(c.UserContext(), req.Station, req.Start, req.End, req.Offset, req.Limit)
		if err != nil {
			return err
		}
		return c.JSON(page)
	})

	inst := v1.Group("/:institution")

	inst.Get("/provinces", func(c *fiber.Ctx) error {
		in, err := institutionParam(c)
		if err != nil {
			return err
		}
		provinces, err := service.Provinces(c.UserContext(), in)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"institution": in, "provinces": provinces})
	})

	inst.Get("/stations", func(c *fiber.Ctx) error {
		in, err := institutionParam(c)
		if err != nil {
			return err
		}
		stations, err := service.Stations(c.UserContext(), in, strings.TrimSpace(c.Query("province")))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"institution": in, "stations": stations})
	})

	inst.Get("/stations/:id/period", func(c *fiber.Ctx) error {
		in, err := institutionParam(c)
		if err != nil {
			return err
		}
		st, res, err := service.Period(c.UserContext(), in, c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(newPeriodResponse(st, res))
	})

	inst.Get("/stations/:id/months", func(c *fiber.Ctx) error {
		var req optionsQuery
		if err := req.bind(c, false); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		in, err := institutionParam(c)
		if err != nil {
			return err
		}
		_, res, err := service.Period(c.UserContext(), in, c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"year": req.Year, "months": orEmpty(period.MonthOptions(res.Bounds, req.Year))})
	})

	inst.Get("/stations/:id/days", func(c *fiber.Ctx) error {
		var req optionsQuery
		if err := req.bind(c, true); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		in, err := institutionParam(c)
		if err != nil {
			return err
		}
		_, res, err := service.Period(c.UserContext(), in, c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"year":  req.Year,
			"month": req.Month,
			"days":  orEmpty(period.DayOptions(res.Bounds, req.Year, req.Month)),
		})
	})

	inst.Get("/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		in, err := institutionParam(c)
		if err != nil {
			return err
		}

		w := period.Window{Start: req.Start, End: req.End}
		page, err := service.History(c.UserContext(), in, req.Station, w, req.Offset, req.Limit)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"institution": in,
			"station":     req.Station,
			"start":       period.FormatDate(w.Start),
			"end":         period.FormatDate(w.End),
			"page":        page,
		})
	})

	inst.Get("/realtime", func(c *fiber.Ctx) error {
		in, err := institutionParam(c)
		if err != nil {
			return err
		}
		panel, err := service.Realtime(c.UserContext(), in)
		if err != nil {
			return err
		}
		return c.JSON(panel)
	})
}

func registerForecastRoutes(v1 fiber.Router, service *weather.Service) {
	fc := v1.Group("/forecast")

	fc.Get("/short", func(c *fiber.Ctx) error {
		var req forecastQuery
		req.bind(c)
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		days, err := service.ShortForecast(c.UserContext(), req.Region)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"region": req.Region, "days": days})
	})

	fc.Get("/mid", func(c *fiber.Ctx) error {
		var req forecastQuery
		req.bind(c)
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		days, err := service.MidForecast(c.UserContext(), req.Region)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"region": req.Region, "days": days})
	})

	fc.Get("/map", func(c *fiber.Ctx) error {
		points, err := service.ForecastMap(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"points": points})
	})

	for _, kind := range []weather.ForecastKind{weather.ForecastShort, weather.ForecastMid} {
		fc.Get("/"+string(kind)+"/regions", func(c *fiber.Ctx) error {
			regions, err := service.ForecastRegions(c.UserContext(), kind)
			if err != nil {
				return err
			}
			return c.JSON(fiber.Map{"kind": kind, "regions": regions})
		})
	}
}

func institutionParam(c *fiber.Ctx) (weather.Institution, error) {
	in, err := weather.ParseInstitution(c.Params("institution"))
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return in, nil
}

func orEmpty(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

// periodResponse renders a resolution with civil dates.
type periodResponse struct {
	Station      weather.Station `json:"station"`
	Start        string          `json:"start"`
	End          string          `json:"end"`
	DefaultStart string          `json:"defaultStart"`
	DefaultEnd   string          `json:"defaultEnd"`
	Years        []int           `json:"years"`
}

func newPeriodResponse(st weather.Station, res period.Resolution) periodResponse {
	return periodResponse{
		Station:      st,
		Start:        period.FormatDate(res.Bounds.Start),
		End:          period.FormatDate(res.Bounds.End),
		DefaultStart: period.FormatDate(res.Default.Start),
		DefaultEnd:   period.FormatDate(res.Default.End),
		Years:        period.YearOptions(res.Bounds),
	}
}

// historyQuery holds query parameters for the stateless history endpoint.
type historyQuery struct {
	Station string    `validate:"required,max=32"`
	Start   time.Time `validate:"required"`
	End     time.Time `validate:"required,gtefield=Start"`
	Offset  int       `validate:"gte=0"`
	Limit   int       `validate:"gte=0,lte=10000"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.Station = strings.TrimSpace(c.Query("station"))

	startStr := c.Query("start")
	endStr := c.Query("end")
	if startStr == "" || endStr == "" {
		return errors.New("start and end query parameters are required")
	}

	start, err := period.ParseDate(startStr)
	if err != nil {
		return fmt.Errorf("invalid start date; use YYYY-MM-DD: %w", err)
	}
	end, err := period.ParseDate(endStr)
	if err != nil {
		return fmt.Errorf("invalid end date; use YYYY-MM-DD: %w", err)
	}
	h.Start = start
	h.End = end

	return bindPaging(c, &h.Offset, &h.Limit)
}

// monthlyQuery holds query parameters for the monthly aggregates endpoint.
type monthlyQuery struct {
	Station string `validate:"omitempty,max=32"`
	Start   string `validate:"required,datetime=2006-01"`
	End     string `validate:"required,datetime=2006-01"`
	Offset  int    `validate:"gte=0"`
	Limit   int    `validate:"gte=0,lte=100"`
}

func (m *monthlyQuery) bind(c *fiber.Ctx) error {
	m.Station = strings.TrimSpace(c.Query("station"))
	m.Start = strings.TrimSpace(c.Query("start"))
	m.End = strings.TrimSpace(c.Query("end"))
	return bindPaging(c, &m.Offset, &m.Limit)
}

// optionsQuery holds the year (and month) a month/day option list is asked for.
type optionsQuery struct {
	Year  int `validate:"required,gte=1900,lte=2200"`
	Month int `validate:"omitempty,gte=1,lte=12"`
}

func (o *optionsQuery) bind(c *fiber.Ctx, withMonth bool) error {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		return errors.New("year query parameter must be a number")
	}
	o.Year = year
	if !withMonth {
		return nil
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil || month == 0 {
		return errors.New("month query parameter must be a number between 1 and 12")
	}
	o.Month = month
	return nil
}

// forecastQuery narrows a forecast to one region.
type forecastQuery struct {
	Region string `validate:"omitempty,max=64"`
}

func (f *forecastQuery) bind(c *fiber.Ctx) {
	f.Region = strings.TrimSpace(c.Query("region"))
}

func bindPaging(c *fiber.Ctx, offset, limit *int) error {
	var err error
	if s := c.Query("offset"); s != "" {
		if *offset, err = strconv.Atoi(s); err != nil {
			return errors.New("offset must be a number")
		}
	}
	if s := c.Query("limit"); s != "" {
		if *limit, err = strconv.Atoi(s); err != nil {
			return errors.New("limit must be a number")
		}
	}
	return nil
}
