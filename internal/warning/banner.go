package warning

import "github.com/i474232898/desk-weather/internal/weather"

// Banner is the content of the takeover screen.
type Banner struct {
	Fill     weather.RGB565 `json:"fill"`
	Severity string         `json:"severity"`
	TypeName string         `json:"typeName"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
}

// Neutral is the fill for unknown severity colours.
var Neutral = weather.RGB(128, 128, 128)

var severityFills = map[string]weather.RGB565{
	"White":  weather.RGB(255, 255, 255),
	"Blue":   weather.RGB(0, 0, 255),
	"Green":  weather.RGB(0, 255, 0),
	"Yellow": weather.RGB(255, 255, 0),
	"Orange": weather.RGB(255, 165, 0),
	"Red":    weather.RGB(255, 0, 0),
	"Black":  weather.RGB(0, 0, 0),
}

// SeverityFill maps a warning severity colour name to its fill.
func SeverityFill(color string) weather.RGB565 {
	if c, ok := severityFills[color]; ok {
		return c
	}
	return Neutral
}
