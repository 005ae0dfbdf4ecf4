package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/i474232898/desk-weather/internal/display"
	"github.com/i474232898/desk-weather/internal/scheduler"
	"github.com/i474232898/desk-weather/internal/store"
	"github.com/i474232898/desk-weather/internal/warning"
	"github.com/i474232898/desk-weather/internal/weather"
)

var validate = weather.NewValidator()

// Refresher is the part of the scheduler the web channel drives.
type Refresher interface {
	ForceRefresh()
	SetInterval(minutes int) error
	Status(now time.Time) scheduler.Status
}

// IndoorReader returns the latest indoor sensor reading.
type IndoorReader interface {
	Reading() display.Indoor
}

// Brightness is the user-adjustable backlight.
type Brightness interface {
	SetMax(level int) error
	Level() (level int, sleeping bool)
}

// Deps are the components behind the routes. Frames, Indoor and Backlight
// may be nil.
type Deps struct {
	Service   *weather.Service
	Scheduler Refresher
	Warning   *warning.Machine
	Frames    *display.Composer
	Indoor    IndoorReader
	Backlight Brightness
	// RefreshLimit throttles POST /refresh. Nil means one every 10s.
	RefreshLimit *rate.Limiter
	Now          func() time.Time
}

// ErrorHandler renders errors as JSON.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.RefreshLimit == nil {
		d.RefreshLimit = rate.NewLimiter(rate.Every(10*time.Second), 1)
	}

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")

	v1.Get("/display", func(c *fiber.Ctx) error {
		now := d.Now()
		resp := fiber.Map{
			"snapshot":     d.Service.Snapshot(),
			"warningState": d.Warning.State().String(),
			"banner":       d.Warning.Banner(),
			"status":       d.Scheduler.Status(now),
		}
		if d.Frames != nil {
			resp["frame"] = d.Frames.Last()
		}
		if d.Indoor != nil {
			resp["indoor"] = d.Indoor.Reading()
		}
		return c.JSON(resp)
	})

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		cur, err := d.Service.GetLatest()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather data for configured city")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
		}
		snap := d.Service.Snapshot()
		return c.JSON(fiber.Map{
			"current":  cur,
			"aqi":      cur.AQILevel(),
			"forecast": snap.Forecast,
			"ticker":   snap.Ticker,
		})
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		observations, err := d.Service.GetRange(req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather history")
		}

		return c.JSON(fiber.Map{
			"cityCode":     d.Service.Settings().CityCode,
			"from":         req.From,
			"to":           req.To,
			"observations": observations,
		})
	})

	v1.Get("/warning", func(c *fiber.Ctx) error {
		snap := d.Service.Snapshot()
		return c.JSON(fiber.Map{
			"report":   snap.Warning,
			"active":   snap.WarningActive,
			"state":    d.Warning.State().String(),
			"deadline": d.Warning.Deadline(),
			"banner":   d.Warning.Banner(),
		})
	})

	v1.Get("/almanac", func(c *fiber.Ctx) error {
		snap := d.Service.Snapshot()
		if !snap.Almanac.Loaded() {
			return fiber.NewError(fiber.StatusNotFound, "almanac not loaded yet")
		}
		return c.JSON(fiber.Map{
			"almanac": snap.Almanac,
			"scroll":  snap.AlmanacScroll,
		})
	})

	v1.Get("/settings", func(c *fiber.Ctx) error {
		return c.JSON(settingsView(d))
	})

	v1.Put("/settings", func(c *fiber.Ctx) error {
		var req settingsRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid settings body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Brightness != nil && d.Backlight == nil {
			return fiber.NewError(fiber.StatusBadRequest, "backlight not configured")
		}

		if req.IntervalMinutes != nil {
			if err := d.Scheduler.SetInterval(*req.IntervalMinutes); err != nil {
				return settingsError(err)
			}
		}
		if req.CityCode != nil {
			changed, err := d.Service.SetCityCode(*req.CityCode)
			if err != nil {
				return settingsError(err)
			}
			if changed {
				d.Scheduler.ForceRefresh()
			}
		}
		if req.Brightness != nil {
			if err := d.Backlight.SetMax(*req.Brightness); err != nil {
				return settingsError(err)
			}
		}
		return c.JSON(settingsView(d))
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		if !d.RefreshLimit.Allow() {
			return fiber.NewError(fiber.StatusTooManyRequests, "refresh requested too often")
		}
		d.Scheduler.ForceRefresh()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": true})
	})
}

// settingsRequest is a partial settings update.
type settingsRequest struct {
	CityCode        *string `json:"cityCode" validate:"omitempty,citycode"`
	IntervalMinutes *int    `json:"intervalMinutes" validate:"omitempty,min=1,max=60"`
	Brightness      *int    `json:"brightness" validate:"omitempty,min=0,max=255"`
}

func settingsView(d Deps) fiber.Map {
	m := fiber.Map{"settings": d.Service.Settings()}
	if d.Backlight != nil {
		level, sleeping := d.Backlight.Level()
		m["brightness"] = level
		m["sleeping"] = sleeping
	}
	return m
}

func settingsError(err error) error {
	if errors.Is(err, weather.ErrInvalidSetting) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
