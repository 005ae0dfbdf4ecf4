// Package workers runs the periodic device tasks next to the tick loop:
// indoor sensor sampling and backlight scheduling.
package workers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Runner owns the worker schedule.
type Runner struct {
	scheduler *gocron.Scheduler
}

// Start schedules the sensor every sensorEvery and the backlight every
// minute. Either worker may be nil. Jobs never overlap themselves.
func Start(loc *time.Location, sensor *Sensor, sensorEvery time.Duration, bl *Backlight, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()

	if sensor != nil {
		secs := int(sensorEvery.Seconds())
		if secs <= 0 {
			secs = 60
		}
		if _, err := s.Every(secs).Seconds().Do(func() {
			if err := sensor.Sample(); err != nil {
				logger.Warn("workers: sensor sample failed", "error", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("scheduling sensor: %w", err)
		}
	}

	if bl != nil {
		if _, err := s.Every(1).Minute().Do(func() {
			if err := bl.Evaluate(); err != nil {
				logger.Warn("workers: backlight update failed", "error", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("scheduling backlight: %w", err)
		}
	}

	s.StartAsync()
	logger.Info("workers: started", "jobs", len(s.Jobs()))
	return &Runner{scheduler: s}, nil
}

// Stop stops the scheduler and cancels any future jobs.
func (r *Runner) Stop() {
	if r != nil && r.scheduler != nil {
		r.scheduler.Stop()
	}
}
