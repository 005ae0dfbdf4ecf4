package workers

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/desk-weather/internal/display"
)

// IIO attribute files of a temperature/humidity sensor, in milli units.
const (
	tempFile     = "in_temp_input"
	humidityFile = "in_humidityrelative_input"
)

// Sensor samples an indoor temperature/humidity sensor exposed through the
// Linux IIO sysfs interface (e.g. the dht11 driver).
type Sensor struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	last display.Indoor
}

// NewSensor creates a Sensor reading from an IIO device directory such as
// /sys/bus/iio/devices/iio:device0.
func NewSensor(dir string, logger *slog.Logger) *Sensor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sensor{dir: dir, logger: logger, now: time.Now}
}

// Sample reads the sensor once. A failed read keeps the previous reading.
func (s *Sensor) Sample() error {
	t, err := readMilli(filepath.Join(s.dir, tempFile))
	if err != nil {
		return err
	}
	h, err := readMilli(filepath.Join(s.dir, humidityFile))
	if err != nil {
		return err
	}
	r := display.Indoor{TempC: t, Humidity: h, At: s.now(), Valid: true}

	s.mu.Lock()
	s.last = r
	s.mu.Unlock()

	s.logger.Debug("indoor sample", "temp_c", t, "humidity", h)
	return nil
}

// Reading returns the latest successful sample.
func (s *Sensor) Reading() display.Indoor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func readMilli(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return v / 1000, nil
}
