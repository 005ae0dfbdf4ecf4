package weather

import (
	"time"
)

// Sentinels for fields that have not been loaded from any upstream yet.
const (
	NotLoaded    = "no_init"
	NotLoadedInt = 999
)

// IconUnknown is used when the weather code carries no icon number.
const IconUnknown = 99

// CurrentWeather is the live observation for the configured city.
type CurrentWeather struct {
	CityCode    string    `json:"cityCode"`
	City        string    `json:"city"`
	TempC       int       `json:"tempC"`
	Humidity    int       `json:"humidityPercent"`
	AQI         int       `json:"aqi"`
	WindDir     string    `json:"windDirection"`
	WindScale   string    `json:"windScale"`
	Weather     string    `json:"weather"`
	WeatherCode string    `json:"weatherCode"`
	Icon        int       `json:"icon"`
	ObservedAt  string    `json:"observedAt"` // upstream local "HH:MM"
	FetchedAt   time.Time `json:"fetchedAt"`
}

// NewCurrentWeather returns a record with every field at its sentinel.
func NewCurrentWeather() CurrentWeather {
	return CurrentWeather{
		CityCode:    NotLoaded,
		City:        NotLoaded,
		TempC:       NotLoadedInt,
		Humidity:    NotLoadedInt,
		AQI:         NotLoadedInt,
		WindDir:     NotLoaded,
		WindScale:   NotLoaded,
		Weather:     NotLoaded,
		WeatherCode: NotLoaded,
		Icon:        NotLoadedInt,
		ObservedAt:  NotLoaded,
	}
}

// Loaded reports whether the record came from an upstream response.
func (c CurrentWeather) Loaded() bool { return c.City != NotLoaded }

// AQILevel is the display classification of an air quality index.
func (c CurrentWeather) AQILevel() AQILevel { return ClassifyAQI(c.AQI) }

// Forecast is today's outlook: the city summary plus the first daily
// forecast entry.
type Forecast struct {
	Weather    string `json:"weather"`
	DayTempC   int    `json:"dayTempC"`
	NightTempC int    `json:"nightTempC"`
	WindDir    string `json:"windDirection"`
	WindScale  string `json:"windScale"`
	HighC      int    `json:"highC"`
	LowC       int    `json:"lowC"`
}

// NewForecast returns a record with every field at its sentinel.
func NewForecast() Forecast {
	return Forecast{
		Weather:    NotLoaded,
		DayTempC:   NotLoadedInt,
		NightTempC: NotLoadedInt,
		WindDir:    NotLoaded,
		WindScale:  NotLoaded,
		HighC:      NotLoadedInt,
		LowC:       NotLoadedInt,
	}
}

// Loaded reports whether the record came from an upstream response.
func (f Forecast) Loaded() bool { return f.Weather != NotLoaded }

// AlmanacDay is the traditional calendar information for one day.
type AlmanacDay struct {
	Date          time.Time `json:"date"`
	YearTips      string    `json:"yearTips"`
	TypeDes       string    `json:"typeDes"`
	ChineseZodiac string    `json:"chineseZodiac"`
	SolarTerms    string    `json:"solarTerms"`
	LunarCalendar string    `json:"lunarCalendar"`
	Suit          string    `json:"suit"`
	Avoid         string    `json:"avoid"`
	WeekOfYear    int       `json:"weekOfYear"`
}

// NewAlmanacDay returns a record with every field at its sentinel.
func NewAlmanacDay() AlmanacDay {
	return AlmanacDay{
		YearTips:      NotLoaded,
		TypeDes:       NotLoaded,
		ChineseZodiac: NotLoaded,
		SolarTerms:    NotLoaded,
		LunarCalendar: NotLoaded,
		Suit:          NotLoaded,
		Avoid:         NotLoaded,
		WeekOfYear:    NotLoadedInt,
	}
}

// Loaded reports whether the record came from an upstream response.
func (a AlmanacDay) Loaded() bool { return a.LunarCalendar != NotLoaded }

// Warning is one severe weather warning as issued.
type Warning struct {
	ID            string `json:"id"`
	Sender        string `json:"sender"`
	PubTime       string `json:"pubTime"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	Type          int    `json:"type"`
	TypeName      string `json:"typeName"`
	SeverityColor string `json:"severityColor"`
	Text          string `json:"text"`
}

// NewWarning returns a record with every field at its sentinel.
func NewWarning() Warning {
	return Warning{
		ID:            NotLoaded,
		Sender:        NotLoaded,
		PubTime:       NotLoaded,
		Title:         NotLoaded,
		Status:        NotLoaded,
		Type:          NotLoadedInt,
		TypeName:      NotLoaded,
		SeverityColor: NotLoaded,
		Text:          NotLoaded,
	}
}

// Warning statuses that trigger a takeover.
const (
	StatusActive = "active"
	StatusUpdate = "update"
)

// WarningReport is one poll of the warning endpoint. Present is false when
// no warning is in force.
type WarningReport struct {
	Code       string  `json:"code"`
	UpdateTime string  `json:"updateTime"`
	Present    bool    `json:"present"`
	Warning    Warning `json:"warning"`
}

// NewWarningReport returns an empty report with a sentinel warning.
func NewWarningReport() WarningReport {
	return WarningReport{Code: NotLoaded, UpdateTime: NotLoaded, Warning: NewWarning()}
}

// Active reports whether the warning should take over the display.
func (r WarningReport) Active() bool {
	return r.Present && (r.Warning.Status == StatusActive || r.Warning.Status == StatusUpdate)
}

// Snapshot is the consistent view handed to the compositor and the web
// channel. Generation counters increase on every stored update of their
// kind.
type Snapshot struct {
	BootID string `json:"bootId"`

	Current  CurrentWeather `json:"current"`
	Forecast Forecast       `json:"forecast"`
	Ticker   []ScrollEntry  `json:"ticker"`

	Almanac       AlmanacDay    `json:"almanac"`
	AlmanacScroll []ScrollEntry `json:"almanacScroll"`

	Warning       WarningReport `json:"warning"`
	WarningActive bool          `json:"warningActive"`

	WeatherGen uint64 `json:"weatherGeneration"`
	WarningGen uint64 `json:"warningGeneration"`
	AlmanacGen uint64 `json:"almanacGeneration"`

	WeatherAt time.Time `json:"weatherUpdatedAt"`
	WarningAt time.Time `json:"warningUpdatedAt"`
	AlmanacAt time.Time `json:"almanacUpdatedAt"`
}

// NewSnapshot returns a snapshot with every record at its sentinel.
func NewSnapshot(bootID string) Snapshot {
	return Snapshot{
		BootID:   bootID,
		Current:  NewCurrentWeather(),
		Forecast: NewForecast(),
		Almanac:  NewAlmanacDay(),
		Warning:  NewWarningReport(),
	}
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Ticker = append([]ScrollEntry(nil), s.Ticker...)
	out.AlmanacScroll = append([]ScrollEntry(nil), s.AlmanacScroll...)
	return out
}
