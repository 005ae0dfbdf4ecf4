package weather

// RGB565 is a 16-bit panel colour.
type RGB565 uint16

// RGB packs 8-bit channels into RGB565.
func RGB(r, g, b uint8) RGB565 {
	return RGB565(uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3)
}

// Color names the text colours used by scrolling lines.
type Color string

const (
	ColorWhite Color = "white"
	ColorGreen Color = "green"
	ColorRed   Color = "red"
)

// RGB565 maps the named colour to the panel format.
func (c Color) RGB565() RGB565 {
	switch c {
	case ColorGreen:
		return RGB(0, 255, 0)
	case ColorRed:
		return RGB(255, 0, 0)
	default:
		return RGB(255, 255, 255)
	}
}

// ScrollEntry is one line of a rotating text set.
type ScrollEntry struct {
	Text  string `json:"text"`
	Color Color  `json:"color"`
}

// AQILevel is the label and badge colour for an air quality index.
type AQILevel struct {
	Label string `json:"label"`
	Badge RGB565 `json:"badge"`
}

var aqiLevels = []struct {
	max   int
	level AQILevel
}{
	{50, AQILevel{"优", RGB(156, 202, 127)}},
	{100, AQILevel{"良", RGB(247, 219, 100)}},
	{150, AQILevel{"轻度", RGB(242, 159, 57)}},
	{200, AQILevel{"中度", RGB(186, 55, 121)}},
}

// ClassifyAQI buckets an index into its display level.
func ClassifyAQI(aqi int) AQILevel {
	for _, l := range aqiLevels {
		if aqi <= l.max {
			return l.level
		}
	}
	return AQILevel{"重度", RGB(136, 11, 32)}
}
