package display

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/i474232898/desk-weather/internal/scheduler"
	"github.com/i474232898/desk-weather/internal/warning"
	"github.com/i474232898/desk-weather/internal/weather"
)

// StepEvery is the rotation cadence of the ticker and almanac lines.
const StepEvery = 2 * time.Second

var weekdays = [...]string{"日", "一", "二", "三", "四", "五", "六"}

// BannerSource exposes the warning takeover.
type BannerSource interface {
	State() warning.State
	Banner() warning.Banner
}

// Composer turns snapshots into frames, one per host loop iteration.
type Composer struct {
	warn BannerSource
	loc  *time.Location

	ticker   Rotation
	almanac  Rotation
	lastStep time.Time

	mu   sync.RWMutex
	last Frame
}

// NewComposer creates a Composer that renders wall clock time in loc.
func NewComposer(warn BannerSource, loc *time.Location) *Composer {
	if loc == nil {
		loc = time.Local
	}
	return &Composer{warn: warn, loc: loc}
}

// Compose builds the frame for now. The rotating lines advance once per
// even second, every StepEvery.
func (c *Composer) Compose(now time.Time, snap weather.Snapshot, sig scheduler.Signals, indoor Indoor) Frame {
	local := now.In(c.loc)
	sec := local.Truncate(time.Second)

	step := sec.Second()%2 == 0 && sec.Sub(c.lastStep) >= StepEvery
	if step {
		c.lastStep = sec
	}
	ti := c.ticker.Step(len(snap.Ticker), step)
	ai := c.almanac.Step(len(snap.AlmanacScroll), step)

	f := Frame{
		At:       now,
		Clock:    local.Format("15:04:05"),
		Date:     fmt.Sprintf("%d月%d日 周%s", int(local.Month()), local.Day(), weekdays[local.Weekday()]),
		Current:  snap.Current,
		AQI:      snap.Current.AQILevel(),
		Forecast: snap.Forecast,
		Indoor:   indoor,
		Repaint:  sig.Repaint || sig.Weather,
	}
	f.TickerIndex, f.AlmanacIdx = ti, ai
	if ti >= 0 {
		f.Ticker = snap.Ticker[ti]
	}
	if ai >= 0 {
		f.Almanac = snap.AlmanacScroll[ai]
	}
	if c.warn != nil && c.warn.State() == warning.Takeover {
		f.Takeover = true
		f.Banner = c.warn.Banner()
		f.Repaint = f.Repaint || sig.Transition.Changed()
	}

	c.mu.Lock()
	c.last = f
	c.mu.Unlock()
	return f
}

// Last returns the most recently composed frame.
func (c *Composer) Last() Frame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// LogCompositor writes frames to a logger instead of a panel. Only frames
// whose visible text changed are logged.
type LogCompositor struct {
	logger *slog.Logger
	prev   string
}

// NewLogCompositor creates a LogCompositor.
func NewLogCompositor(logger *slog.Logger) *LogCompositor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogCompositor{logger: logger}
}

// Draw implements Compositor.
func (l *LogCompositor) Draw(f Frame) error {
	key := f.Current.City + "|" + f.Ticker.Text + "|" + f.Almanac.Text + "|" + f.Banner.Title
	if f.Takeover {
		key = "takeover|" + key
	}
	if key == l.prev && !f.Repaint {
		return nil
	}
	l.prev = key

	if f.Takeover {
		l.logger.Info("frame", "takeover", true, "severity", f.Banner.Severity, "title", f.Banner.Title)
		return nil
	}
	l.logger.Debug("frame",
		"clock", f.Clock,
		"city", f.Current.City,
		"temp_c", f.Current.TempC,
		"aqi", f.AQI.Label,
		"ticker", f.Ticker.Text,
		"almanac", f.Almanac.Text,
		"indoor_valid", f.Indoor.Valid,
		"repaint", f.Repaint,
	)
	return nil
}
