package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	httpapi "github.com/i474232898/desk-weather/internal/api/http"
	"github.com/i474232898/desk-weather/internal/config"
	"github.com/i474232898/desk-weather/internal/display"
	"github.com/i474232898/desk-weather/internal/logging"
	"github.com/i474232898/desk-weather/internal/scheduler"
	"github.com/i474232898/desk-weather/internal/store"
	"github.com/i474232898/desk-weather/internal/transport"
	"github.com/i474232898/desk-weather/internal/warning"
	"github.com/i474232898/desk-weather/internal/weather"
	"github.com/i474232898/desk-weather/internal/weather/providers"
	"github.com/i474232898/desk-weather/internal/workers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logging.Setup(cfg.LogLevel)
	bootID := uuid.NewString()
	log = log.With("boot", bootID)

	// Outbound clients: one verifying, one for the warning host.
	plain, insecure := transport.NewClients(cfg.HTTPTimeout)
	fetcher := transport.NewFetcher(transport.Config{
		Client:   plain,
		Insecure: insecure,
		Retry:    transport.RetryConfig{Attempts: cfg.FetchAttempts, Delay: cfg.FetchRetryDelay},
		MaxBytes: cfg.MaxBodyBytes,
		Logger:   log,
	})

	src := weather.Sources{
		Weather: providers.NewWeatherIndexProvider(fetcher, "", log),
		Almanac: providers.NewAlmanacProvider(fetcher, "", cfg.AlmanacAppID, cfg.AlmanacAppSecret, log),
		Locator: providers.NewCityLookupProvider(fetcher, "", log),
	}
	if cfg.QWeatherKey != "" {
		src.Warnings = providers.NewWarningProvider(fetcher, cfg.QWeatherHost, cfg.QWeatherKey, log)
	}

	warningLoc := cfg.WarningLocation
	if warningLoc == "" && cfg.WarningAddress != "" && cfg.GeocoderAPIKey != "" {
		if warningLoc, err = providers.GridLocation(cfg.WarningAddress, cfg.GeocoderAPIKey); err != nil {
			log.Warn("geocoding warning address failed; using city code", "address", cfg.WarningAddress, "error", err)
			warningLoc = ""
		} else {
			log.Info("warning grid location", "address", cfg.WarningAddress, "location", warningLoc)
		}
	}

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(bootID, cfg.StoreMaxHistory, cfg.StoreMaxAge)

	service := weather.NewService(memStore, src, weather.Settings{
		CityCode:        cfg.CityCode,
		IntervalMinutes: cfg.IntervalMinutes,
		WarningLocation: warningLoc,
		WarningsEnabled: cfg.WarningsEnabled,
	}, log)

	machine := warning.NewMachine(warningConfig(cfg), log)

	sched, err := scheduler.New(service, machine, scheduler.Config{
		RetrySpacing: cfg.RetrySpacing,
		AlmanacCron:  cfg.AlmanacCron,
		FetchTimeout: time.Duration(cfg.FetchAttempts) * (cfg.HTTPTimeout + cfg.FetchRetryDelay),
		Location:     cfg.Location,
	}, log)
	if err != nil {
		log.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	// Device workers.
	var sensor *workers.Sensor
	if cfg.SensorDir != "" {
		sensor = workers.NewSensor(cfg.SensorDir, log)
	}
	sleepStart, err := workers.ParseClock(cfg.SleepStart)
	if err != nil {
		log.Error("invalid SLEEP_START", "error", err)
		os.Exit(1)
	}
	sleepEnd, err := workers.ParseClock(cfg.SleepEnd)
	if err != nil {
		log.Error("invalid SLEEP_END", "error", err)
		os.Exit(1)
	}
	backlight := workers.NewBacklight(workers.BacklightConfig{
		Dir:        cfg.BacklightDir,
		SleepStart: sleepStart,
		SleepEnd:   sleepEnd,
		Max:        cfg.BacklightMax,
		Min:        cfg.BacklightMin,
		Location:   cfg.Location,
	}, log)
	if err := backlight.Evaluate(); err != nil {
		log.Warn("initial backlight update failed", "error", err)
	}
	runner, err := workers.Start(cfg.Location, sensor, cfg.SensorEvery, backlight, log)
	if err != nil {
		log.Error("failed to start workers", "error", err)
		os.Exit(1)
	}
	defer runner.Stop()

	composer := display.NewComposer(machine, cfg.Location)
	compositor := display.NewLogCompositor(log)

	deps := httpapi.Deps{
		Service:   service,
		Scheduler: sched,
		Warning:   machine,
		Frames:    composer,
		Backlight: backlight,
	}
	if sensor != nil {
		deps.Indoor = sensor
	}
	app := newServer(bootID, deps)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Warn("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("desk-weather started", "city_code", cfg.CityCode, "interval_min", cfg.IntervalMinutes, "warnings", service.WarningsEnabled(), "port", cfg.Port)
	loop(ctx, log, cfg.TickInterval, sched, service, composer, compositor, sensor)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Warn("error during shutdown", "error", err)
	}
}

func warningConfig(cfg *config.AppConfig) warning.Config {
	return warning.Config{MinDwell: cfg.TakeoverMinDwell, ReadRate: float64(cfg.TakeoverReadRate)}
}

// newServer builds the web channel.
func newServer(bootID string, deps httpapi.Deps) *fiber.App {
	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "desk-weather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "desk-weather",
			"boot":    bootID,
		})
	})

	httpapi.RegisterRoutes(app, deps)
	return app
}

// loop drives the refresh scheduler and the display until ctx is done. The
// first tick runs immediately.
func loop(ctx context.Context, log *slog.Logger, every time.Duration, sched *scheduler.Scheduler, service *weather.Service,
	composer *display.Composer, compositor display.Compositor, sensor *workers.Sensor) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		now := time.Now()
		sig := sched.Tick(ctx, now)

		var indoor display.Indoor
		if sensor != nil {
			indoor = sensor.Reading()
		}
		if err := compositor.Draw(composer.Compose(now, service.Snapshot(), sig, indoor)); err != nil {
			log.Warn("draw failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
