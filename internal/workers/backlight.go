package workers

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// MaxLevel is the highest accepted backlight level.
const MaxLevel = 255

var errInvalidClock = errors.New("invalid clock, want HH:MM")

// Clock is a wall clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", errInvalidClock, s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

func (c Clock) minutes() int { return c.Hour*60 + c.Minute }

// InSleepWindow reports whether now falls in [start, end). The window may
// wrap across midnight; equal bounds mean no window.
func InSleepWindow(now time.Time, start, end Clock) bool {
	s, e := start.minutes(), end.minutes()
	if s == e {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	if s < e {
		return cur >= s && cur < e
	}
	return cur >= s || cur < e
}

// BacklightConfig describes the sleep window and levels.
type BacklightConfig struct {
	// Dir is a /sys/class/backlight/<device> directory. Empty disables
	// writing; levels are still tracked.
	Dir        string
	SleepStart Clock
	SleepEnd   Clock
	Max        int
	Min        int
	Location   *time.Location
}

// Backlight dims the panel during the sleep window.
type Backlight struct {
	cfg    BacklightConfig
	logger *slog.Logger
	now    func() time.Time

	// apply is held across a whole Evaluate; an older level never lands
	// after a newer one.
	apply    sync.Mutex
	mu       sync.Mutex
	max      int
	level    int
	sleeping bool
}

// NewBacklight creates a Backlight at its maximum level.
func NewBacklight(cfg BacklightConfig, logger *slog.Logger) *Backlight {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backlight{cfg: cfg, logger: logger, now: time.Now, max: cfg.Max, level: -1}
}

// SetMax changes the level used outside the sleep window.
func (b *Backlight) SetMax(level int) error {
	if level < 0 || level > MaxLevel {
		return fmt.Errorf("backlight level %d out of range 0-%d", level, MaxLevel)
	}
	b.mu.Lock()
	b.max = level
	b.mu.Unlock()
	return b.Evaluate()
}

// Level returns the applied level and whether the sleep window is active.
func (b *Backlight) Level() (level int, sleeping bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level, b.sleeping
}

// Evaluate applies the level for the current time.
func (b *Backlight) Evaluate() error {
	b.apply.Lock()
	defer b.apply.Unlock()

	now := b.now().In(b.cfg.Location)
	sleeping := InSleepWindow(now, b.cfg.SleepStart, b.cfg.SleepEnd)

	b.mu.Lock()
	want := b.max
	if sleeping {
		want = b.cfg.Min
	}
	changed := want != b.level
	b.mu.Unlock()

	if !changed {
		return nil
	}
	if err := b.write(want); err != nil {
		return err
	}

	b.mu.Lock()
	b.level, b.sleeping = want, sleeping
	b.mu.Unlock()
	b.logger.Info("backlight", "level", want, "sleeping", sleeping)
	return nil
}

func (b *Backlight) write(level int) error {
	if b.cfg.Dir == "" {
		return nil
	}
	path := filepath.Join(b.cfg.Dir, "brightness")
	if err := os.WriteFile(path, []byte(strconv.Itoa(level)+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
