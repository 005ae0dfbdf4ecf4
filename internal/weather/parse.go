package weather

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/i474232898/desk-weather/internal/common"
	"github.com/i474232898/desk-weather/internal/payload"
)

// ErrParse means a sub-document was not valid JSON of the expected shape.
var ErrParse = errors.New("parse error")

// flexString accepts a JSON string, number or boolean and keeps its text.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case b[0] == '{' || b[0] == '[':
		return fmt.Errorf("unexpected composite value %s", b)
	default:
		*f = flexString(b)
	}
	return nil
}

// intField reads the leading integer of a lenient numeric field. Text
// without digits yields 0.
func intField(doc, name string, v flexString) int {
	n, ok := common.LeadingInt(string(v))
	if !ok {
		slog.Debug("non-numeric field", "doc", doc, "field", name, "value", string(v))
		return 0
	}
	return n
}

func unmarshal(doc string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrParse, doc, err)
	}
	return nil
}

type observationDoc struct {
	CityCode    flexString `json:"city"`
	CityName    flexString `json:"cityname"`
	Temp        flexString `json:"temp"`
	Humidity    flexString `json:"SD"`
	AQI         flexString `json:"aqi"`
	WindDir     flexString `json:"WD"`
	WindScale   flexString `json:"WS"`
	Weather     flexString `json:"weather"`
	WeatherCode flexString `json:"weathercode"`
	Time        flexString `json:"time"`
}

// ParseCurrentWeather builds the observation record from the observation
// fragment of the weather index page.
func ParseCurrentWeather(observation string) (CurrentWeather, error) {
	var d observationDoc
	if err := unmarshal("observation", []byte(observation), &d); err != nil {
		return NewCurrentWeather(), err
	}
	return CurrentWeather{
		CityCode:    string(d.CityCode),
		City:        string(d.CityName),
		TempC:       intField("observation", "temp", d.Temp),
		Humidity:    intField("observation", "SD", d.Humidity),
		AQI:         intField("observation", "aqi", d.AQI),
		WindDir:     string(d.WindDir),
		WindScale:   string(d.WindScale),
		Weather:     string(d.Weather),
		WeatherCode: string(d.WeatherCode),
		Icon:        IconCode(string(d.WeatherCode)),
		ObservedAt:  string(d.Time),
	}, nil
}

// IconCode returns the icon number of a weather code such as "d01" or "n7".
func IconCode(code string) int {
	n, ok := common.LeadingInt(strings.TrimLeftFunc(code, unicode.IsLetter))
	if !ok || n < 0 {
		return IconUnknown
	}
	return n
}

type citySummaryDoc struct {
	Weather   flexString `json:"weather"`
	Temp      flexString `json:"temp"`
	TempNight flexString `json:"tempn"`
	WindDir   flexString `json:"wd"`
	WindScale flexString `json:"ws"`
}

type forecastEntryDoc struct {
	High flexString `json:"fc"`
	Low  flexString `json:"fd"`
}

// ParseForecast combines the city summary and the first forecast entry.
func ParseForecast(citySummary, forecast string) (Forecast, error) {
	var c citySummaryDoc
	if err := unmarshal("city summary", []byte(citySummary), &c); err != nil {
		return NewForecast(), err
	}
	var f forecastEntryDoc
	if err := unmarshal("forecast", []byte(forecast), &f); err != nil {
		return NewForecast(), err
	}
	return Forecast{
		Weather:    string(c.Weather),
		DayTempC:   intField("city summary", "temp", c.Temp),
		NightTempC: intField("city summary", "tempn", c.TempNight),
		WindDir:    string(c.WindDir),
		WindScale:  string(c.WindScale),
		HighC:      intField("forecast", "fc", f.High),
		LowC:       intField("forecast", "fd", f.Low),
	}, nil
}

type almanacDoc struct {
	YearTips      flexString `json:"yearTips"`
	TypeDes       flexString `json:"typeDes"`
	ChineseZodiac flexString `json:"chineseZodiac"`
	SolarTerms    flexString `json:"solarTerms"`
	LunarCalendar flexString `json:"lunarCalendar"`
	Suit          flexString `json:"suit"`
	Avoid         flexString `json:"avoid"`
	WeekOfYear    flexString `json:"weekOfYear"`
}

// ParseAlmanac builds the almanac record for day from the "data" object of
// the almanac response.
func ParseAlmanac(data []byte, day time.Time) (AlmanacDay, error) {
	var d almanacDoc
	if err := unmarshal("almanac", data, &d); err != nil {
		return NewAlmanacDay(), err
	}
	y, m, dd := day.Date()
	return AlmanacDay{
		Date:          time.Date(y, m, dd, 0, 0, 0, 0, day.Location()),
		YearTips:      string(d.YearTips),
		TypeDes:       string(d.TypeDes),
		ChineseZodiac: string(d.ChineseZodiac),
		SolarTerms:    string(d.SolarTerms),
		LunarCalendar: string(d.LunarCalendar),
		Suit:          string(d.Suit),
		Avoid:         string(d.Avoid),
		WeekOfYear:    intField("almanac", "weekOfYear", d.WeekOfYear),
	}, nil
}

type warningDoc struct {
	ID            flexString `json:"id"`
	Sender        flexString `json:"sender"`
	PubTime       flexString `json:"pubTime"`
	Title         flexString `json:"title"`
	Status        flexString `json:"status"`
	Type          flexString `json:"type"`
	TypeName      flexString `json:"typeName"`
	SeverityColor flexString `json:"severityColor"`
	Text          flexString `json:"text"`
}

// ParseWarning builds a report from the first entry of the warning list.
// An empty list is a valid report with Present unset.
func ParseWarning(doc payload.WarningDoc) (WarningReport, error) {
	r := WarningReport{Code: doc.Code, UpdateTime: doc.UpdateTime, Warning: NewWarning()}
	if doc.Empty() {
		return r, nil
	}
	var w warningDoc
	if err := unmarshal("warning", doc.Warning[0], &w); err != nil {
		return r, err
	}
	r.Present = true
	r.Warning = Warning{
		ID:            string(w.ID),
		Sender:        string(w.Sender),
		PubTime:       string(w.PubTime),
		Title:         string(w.Title),
		Status:        string(w.Status),
		Type:          intField("warning", "type", w.Type),
		TypeName:      string(w.TypeName),
		SeverityColor: string(w.SeverityColor),
		Text:          string(w.Text),
	}
	return r, nil
}
