// Package warning drives the full-screen takeover shown while a severe
// weather warning is in force.
package warning

import (
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/i474232898/desk-weather/internal/metrics"
	"github.com/i474232898/desk-weather/internal/weather"
)

// State of the takeover machine.
type State int

const (
	Idle State = iota
	Armed
	Takeover
	Cooldown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Takeover:
		return "takeover"
	case Cooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Config controls how long a takeover stays on screen.
type Config struct {
	// MinDwell is the shortest takeover.
	MinDwell time.Duration
	// ReadRate is the assumed reading speed in runes per second.
	ReadRate float64
}

// DefaultConfig is used for zero Config fields.
var DefaultConfig = Config{MinDwell: 10 * time.Second, ReadRate: 8}

// Dwell returns how long text stays on screen: the time to read it at
// ReadRate, but never less than MinDwell.
func (c Config) Dwell(text string) time.Duration {
	read := time.Duration(float64(utf8.RuneCountInString(text)) / c.ReadRate * float64(time.Second))
	if read < c.MinDwell {
		return c.MinDwell
	}
	return read
}

// Transition describes what one Tick did.
type Transition struct {
	From    State
	To      State
	Repaint bool
}

// Changed reports whether the state moved.
func (t Transition) Changed() bool { return t.From != t.To }

// Machine is the warning takeover state machine. Observe feeds it poll
// results; Tick advances it and never blocks.
type Machine struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	report   weather.WarningReport
	deadline time.Time
}

// NewMachine creates an idle machine.
func NewMachine(cfg Config, logger *slog.Logger) *Machine {
	if cfg.MinDwell <= 0 {
		cfg.MinDwell = DefaultConfig.MinDwell
	}
	if cfg.ReadRate <= 0 {
		cfg.ReadRate = DefaultConfig.ReadRate
	}
	if logger == nil {
		logger = slog.Default()
	}
	metrics.WarningState.Set(float64(Idle))
	return &Machine{cfg: cfg, logger: logger, report: weather.NewWarningReport()}
}

// Observe feeds the result of one warning poll. A failed poll counts as no
// active warning. Observations are ignored during a takeover and its
// cooldown.
func (m *Machine) Observe(r weather.WarningReport, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case Takeover, Cooldown:
		return
	}

	active := err == nil && r.Active()
	switch {
	case active:
		m.report = r
		if m.state != Armed {
			m.logger.Info("warning armed", "title", r.Warning.Title, "status", r.Warning.Status, "severity", r.Warning.SeverityColor)
		}
		m.set(Armed)
	case m.state == Armed:
		m.logger.Info("warning disarmed", "error", err)
		m.set(Idle)
	}
}

// Tick advances the machine at now.
func (m *Machine) Tick(now time.Time) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := Transition{From: m.state, To: m.state}
	switch m.state {
	case Armed:
		d := m.cfg.Dwell(m.report.Warning.Text)
		m.deadline = now.Add(d)
		m.logger.Info("warning takeover", "title", m.report.Warning.Title, "dwell", d)
		m.set(Takeover)
	case Takeover:
		if !now.Before(m.deadline) {
			m.set(Cooldown)
			t.Repaint = true
		}
	case Cooldown:
		m.set(Idle)
	}
	t.To = m.state
	return t
}

// set must be called with m.mu held.
func (m *Machine) set(s State) {
	m.state = s
	metrics.WarningState.Set(float64(s))
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Deadline returns the end of the current takeover; it is zero before the
// first takeover.
func (m *Machine) Deadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deadline
}

// Report returns the last active report observed.
func (m *Machine) Report() weather.WarningReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.report
}

// Banner returns what the takeover screen shows.
func (m *Machine) Banner() Banner {
	m.mu.Lock()
	w := m.report.Warning
	m.mu.Unlock()
	return Banner{
		Fill:     SeverityFill(w.SeverityColor),
		Severity: w.SeverityColor,
		TypeName: w.TypeName,
		Title:    w.Title,
		Body:     w.Text,
	}
}
