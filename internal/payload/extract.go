// Package payload slices the documents of interest out of raw upstream
// bodies. It knows the layout of each upstream response but nothing about
// the domain records built from them.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrExtract means an otherwise successful response lacked an expected
// marker or field.
var ErrExtract = errors.New("extract error")

// marker pairs delimit one JSON fragment inside the weather index page.
// offset is where the fragment begins relative to the start marker; the
// values are pinned to the page layout served today.
type marker struct {
	name   string
	start  string
	offset int
	end    string
}

var (
	cityMarker     = marker{name: "city", start: `weatherinfo":`, offset: 13, end: `};var alarmDZ`}
	observeMarker  = marker{name: "observation", start: `dataSK =`, offset: 8, end: `;var dataZS`}
	forecastMarker = marker{name: "forecast", start: `"f":[`, offset: 5, end: `,{"fa`}
)

// WeatherIndexDocs holds the three JSON fragments of the weather index page.
type WeatherIndexDocs struct {
	City        string
	Observation string
	Forecast    string
}

// FallbackWeatherIndex is substituted by callers when extraction fails so
// the display shows placeholders instead of stale partial data.
var FallbackWeatherIndex = WeatherIndexDocs{
	City:        `{"city":"--","temp":"--","tempn":"--","weather":"--","wd":"--","ws":"--"}`,
	Observation: `{"cityname":"--","temp":"--","SD":"--","aqi":"0","WD":"--","WS":"--","weather":"--","weathercode":"d99"}`,
	Forecast:    `{"fa":"99","fb":"99","fc":"--","fd":"--"}`,
}

// WeatherIndex extracts the city summary, observation and first forecast
// fragments from the HTML page. body is not modified.
func WeatherIndex(body []byte) (WeatherIndexDocs, error) {
	var docs WeatherIndexDocs
	var err error
	if docs.City, err = slice(body, cityMarker); err != nil {
		return WeatherIndexDocs{}, err
	}
	if docs.Observation, err = slice(body, observeMarker); err != nil {
		return WeatherIndexDocs{}, err
	}
	if docs.Forecast, err = slice(body, forecastMarker); err != nil {
		return WeatherIndexDocs{}, err
	}
	return docs, nil
}

func slice(body []byte, m marker) (string, error) {
	i := bytes.Index(body, []byte(m.start))
	if i < 0 {
		return "", fmt.Errorf("%w: %s start marker %q not found", ErrExtract, m.name, m.start)
	}
	from := i + m.offset
	j := bytes.Index(body[from:], []byte(m.end))
	if j < 0 {
		return "", fmt.Errorf("%w: %s end marker %q not found", ErrExtract, m.name, m.end)
	}
	frag := bytes.TrimSpace(body[from : from+j])
	if len(frag) == 0 {
		return "", fmt.Errorf("%w: %s fragment is empty", ErrExtract, m.name)
	}
	return string(frag), nil
}

// Almanac returns the "data" object of the almanac API response.
func Almanac(body []byte) (json.RawMessage, error) {
	var doc struct {
		Code int             `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: almanac: %v", ErrExtract, err)
	}
	data := bytes.TrimSpace(doc.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("%w: almanac: missing data object (code=%d msg=%q)", ErrExtract, doc.Code, doc.Msg)
	}
	if data[0] != '{' {
		return nil, fmt.Errorf("%w: almanac: data is not an object", ErrExtract)
	}
	return json.RawMessage(data), nil
}

// WarningDoc is the warning API envelope. Entries are left raw for the
// domain parser.
type WarningDoc struct {
	Code       string            `json:"code"`
	UpdateTime string            `json:"updateTime"`
	Warning    []json.RawMessage `json:"warning"`
}

// Empty reports a response without any active warning.
func (d WarningDoc) Empty() bool { return len(d.Warning) == 0 }

// Warnings parses the warning API envelope. An absent or empty warning
// array is a valid result, not an error.
func Warnings(body []byte) (WarningDoc, error) {
	var doc WarningDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return WarningDoc{}, fmt.Errorf("%w: warning: %v", ErrExtract, err)
	}
	return doc, nil
}

const (
	cityCodeLen = 9
	// CityCodeMin and CityCodeMax bound valid city codes of the weather
	// index provider.
	CityCodeMin = 101000000
	CityCodeMax = 102000000
)

// CityCode scans the IP lookup response for "id=" followed by a 9-digit
// city code.
func CityCode(body []byte) (string, error) {
	i := bytes.Index(body, []byte("id="))
	if i < 0 {
		return "", fmt.Errorf("%w: city code marker not found", ErrExtract)
	}
	// Lookup pages quote the value: id="101281001".
	rest := bytes.TrimLeft(body[i+3:], `"'`)
	if len(rest) < cityCodeLen {
		return "", fmt.Errorf("%w: city code truncated", ErrExtract)
	}
	code := string(rest[:cityCodeLen])
	n, err := strconv.Atoi(code)
	if err != nil {
		return "", fmt.Errorf("%w: city code %q is not numeric", ErrExtract, code)
	}
	if n < CityCodeMin || n > CityCodeMax {
		return "", fmt.Errorf("%w: city code %d out of range", ErrExtract, n)
	}
	return code, nil
}
