package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/atomic"

	"github.com/i474232898/desk-weather/internal/metrics"
	"github.com/i474232898/desk-weather/internal/warning"
	"github.com/i474232898/desk-weather/internal/weather"
)

// Refresher is the part of weather.Service the scheduler drives.
type Refresher interface {
	RefreshWeather(ctx context.Context) error
	RefreshWarning(ctx context.Context) (weather.WarningReport, error)
	RefreshAlmanac(ctx context.Context, day time.Time) error
	Interval() time.Duration
	SetIntervalMinutes(m int) error
	WarningsEnabled() bool
}

// Config holds the scheduler settings.
type Config struct {
	// RetrySpacing is the minimum time between two attempts of one kind.
	RetrySpacing time.Duration
	// AlmanacCron is a standard 5-field cron expression for the daily
	// almanac refresh.
	AlmanacCron string
	// FetchTimeout bounds each refresh step.
	FetchTimeout time.Duration
	// Location is the wall clock the almanac trigger and day refer to.
	Location *time.Location
}

// DefaultAlmanacCron refreshes the almanac at 00:08 every day.
const DefaultAlmanacCron = "8 0 * * *"

// Signals tells the host loop what changed during one Tick.
type Signals struct {
	CycleID    string
	Weather    bool
	Warning    bool
	Almanac    bool
	State      warning.State
	Transition warning.Transition
	Repaint    bool
}

// Any reports whether any record or the warning state changed.
func (s Signals) Any() bool {
	return s.Weather || s.Warning || s.Almanac || s.Transition.Changed()
}

// Status reports how long ago each kind last refreshed successfully. A
// negative age means never.
type Status struct {
	WeatherAge   time.Duration `json:"weatherAge"`
	WarningAge   time.Duration `json:"warningAge"`
	AlmanacAge   time.Duration `json:"almanacAge"`
	Interval     time.Duration `json:"interval"`
	NextAlmanac  time.Time     `json:"nextAlmanac"`
	ForcePending bool          `json:"forcePending"`
	WarningState string        `json:"warningState"`
}

// Scheduler decides on every tick which refreshes are due and runs them
// in order: warning machine, weather, warning, almanac.
type Scheduler struct {
	svc     Refresher
	machine *warning.Machine
	cfg     Config
	almanac cron.Schedule
	logger  *slog.Logger

	force   *atomic.Bool
	running *atomic.Bool

	mu             sync.Mutex
	weatherOK      time.Time
	weatherTry     time.Time
	warningOK      time.Time
	almanacOK      time.Time
	almanacTry     time.Time
	almanacPending bool
	almanacFired   bool
}

// New creates a new Scheduler.
func New(svc Refresher, machine *warning.Machine, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if cfg.AlmanacCron == "" {
		cfg.AlmanacCron = DefaultAlmanacCron
	}
	if cfg.RetrySpacing <= 0 {
		cfg.RetrySpacing = time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	sched, err := cron.ParseStandard(cfg.AlmanacCron)
	if err != nil {
		return nil, fmt.Errorf("almanac cron %q: %w", cfg.AlmanacCron, err)
	}
	return &Scheduler{
		svc:            svc,
		machine:        machine,
		cfg:            cfg,
		almanac:        sched,
		logger:         logger,
		force:          atomic.NewBool(false),
		running:        atomic.NewBool(false),
		almanacPending: true,
	}, nil
}

// ForceRefresh makes the next Tick fetch the weather regardless of the
// interval.
func (s *Scheduler) ForceRefresh() {
	s.force.Store(true)
	metrics.ForcedRefreshes.Inc()
}

// SetInterval changes the weather refresh interval (1-60 minutes).
func (s *Scheduler) SetInterval(minutes int) error {
	return s.svc.SetIntervalMinutes(minutes)
}

// Tick runs the refresh steps that are due at now. It never draws and
// never retries within a tick. A Tick that overlaps a running one returns
// empty signals.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) Signals {
	if !s.running.CAS(false, true) {
		return Signals{State: s.machine.State()}
	}
	defer s.running.Store(false)

	sig := Signals{CycleID: uuid.NewString()}
	log := s.logger.With("cycle", sig.CycleID)

	sig.Transition = s.machine.Tick(now)
	sig.Repaint = sig.Transition.Repaint
	if sig.Transition.Changed() {
		log.Debug("warning state", "from", sig.Transition.From.String(), "to", sig.Transition.To.String())
	}

	forced := s.force.CAS(true, false)
	if s.weatherDue(now, forced) {
		s.runWeather(ctx, log, now, &sig)
	}

	if day, due := s.almanacDue(now); due {
		s.runAlmanac(ctx, log, now, day, &sig)
	}

	sig.State = s.machine.State()
	return sig
}

func (s *Scheduler) runWeather(ctx context.Context, log *slog.Logger, now time.Time, sig *Signals) {
	s.mu.Lock()
	s.weatherTry = now
	s.mu.Unlock()

	wctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	err := s.svc.RefreshWeather(wctx)
	cancel()
	if err != nil {
		log.Warn("weather refresh failed", "error", err)
	} else {
		s.mu.Lock()
		s.weatherOK = now
		s.mu.Unlock()
		sig.Weather = true
	}

	if !s.svc.WarningsEnabled() {
		return
	}
	wctx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
	r, err := s.svc.RefreshWarning(wctx)
	cancel()
	s.machine.Observe(r, err)
	if err != nil {
		log.Warn("warning refresh failed", "error", err)
		return
	}
	s.mu.Lock()
	s.warningOK = now
	s.mu.Unlock()
	sig.Warning = true
}

func (s *Scheduler) runAlmanac(ctx context.Context, log *slog.Logger, now, day time.Time, sig *Signals) {
	s.mu.Lock()
	s.almanacTry = now
	s.mu.Unlock()

	actx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	err := s.svc.RefreshAlmanac(actx, day)
	cancel()
	if err != nil {
		log.Warn("almanac refresh failed", "error", err)
		return
	}
	s.mu.Lock()
	s.almanacOK = now
	s.almanacPending = false
	s.mu.Unlock()
	sig.Almanac = true
}

func (s *Scheduler) weatherDue(now time.Time, forced bool) bool {
	if forced {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.weatherTry.IsZero() && now.Sub(s.weatherTry) < s.cfg.RetrySpacing {
		return false
	}
	return s.weatherOK.IsZero() || now.Sub(s.weatherOK) >= s.svc.Interval()
}

// almanacDue latches the cron trigger once per trigger minute and reports
// whether an almanac fetch should run now, and for which day.
func (s *Scheduler) almanacDue(now time.Time) (time.Time, bool) {
	local := now.In(s.cfg.Location)
	minute := local.Truncate(time.Minute)
	trigger := s.almanac.Next(minute.Add(-time.Second)).Equal(minute)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case trigger && !s.almanacFired:
		s.almanacFired = true
		s.almanacPending = true
		s.almanacTry = time.Time{}
	case !trigger:
		s.almanacFired = false
	}
	if !s.almanacPending {
		return local, false
	}
	if !s.almanacTry.IsZero() && now.Sub(s.almanacTry) < s.cfg.RetrySpacing {
		return local, false
	}
	return local, true
}

// Status reports refresh ages at now.
func (s *Scheduler) Status(now time.Time) Status {
	age := func(t time.Time) time.Duration {
		if t.IsZero() {
			return -1
		}
		return now.Sub(t)
	}
	s.mu.Lock()
	st := Status{
		WeatherAge: age(s.weatherOK),
		WarningAge: age(s.warningOK),
		AlmanacAge: age(s.almanacOK),
	}
	s.mu.Unlock()

	st.Interval = s.svc.Interval()
	st.NextAlmanac = s.almanac.Next(now.In(s.cfg.Location))
	st.ForcePending = s.force.Load()
	st.WarningState = s.machine.State().String()
	return st
}
