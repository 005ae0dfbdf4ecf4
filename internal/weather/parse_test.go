package weather

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/desk-weather/internal/payload"
)

func TestParseCurrentWeather_Fixture(t *testing.T) {
	cur, err := ParseCurrentWeather(`{"temp":"28","SD":"65%","cityname":"湛江"}`)
	require.NoError(t, err)
	assert.Equal(t, 28, cur.TempC)
	assert.Equal(t, 65, cur.Humidity)
	assert.Equal(t, "湛江", cur.City)
	assert.True(t, cur.Loaded())
}

func TestParseCurrentWeather_AllFields(t *testing.T) {
	obs := `{"city":"101281001","cityname":"湛江","temp":"-3","SD":"65%","aqi":120,"WD":"东南风","WS":"2级","weather":"多云","weathercode":"d01","time":"14:25"}`
	cur, err := ParseCurrentWeather(obs)
	require.NoError(t, err)
	assert.Equal(t, CurrentWeather{
		CityCode:    "101281001",
		City:        "湛江",
		TempC:       -3,
		Humidity:    65,
		AQI:         120,
		WindDir:     "东南风",
		WindScale:   "2级",
		Weather:     "多云",
		WeatherCode: "d01",
		Icon:        1,
		ObservedAt:  "14:25",
	}, cur)
	assert.Equal(t, "轻度", cur.AQILevel().Label)
}

func TestParseCurrentWeather_Idempotent(t *testing.T) {
	obs := `{"cityname":"湛江","temp":"28","SD":"65%","aqi":"45","weathercode":"n07"}`
	a, err := ParseCurrentWeather(obs)
	require.NoError(t, err)
	b, err := ParseCurrentWeather(obs)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseCurrentWeather_LenientNumbers(t *testing.T) {
	cur, err := ParseCurrentWeather(`{"cityname":"x","temp":"--","SD":"","aqi":null}`)
	require.NoError(t, err)
	assert.Equal(t, 0, cur.TempC)
	assert.Equal(t, 0, cur.Humidity)
	assert.Equal(t, 0, cur.AQI)
	assert.Equal(t, "", cur.WindDir, "absent strings become empty")
	assert.Equal(t, IconUnknown, cur.Icon)
}

func TestParseCurrentWeather_Malformed(t *testing.T) {
	cur, err := ParseCurrentWeather(`{"temp":`)
	require.ErrorIs(t, err, ErrParse)
	assert.Equal(t, NewCurrentWeather(), cur)
	assert.False(t, cur.Loaded())

	_, err = ParseCurrentWeather(`{"temp":{"v":1}}`)
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseForecast(t *testing.T) {
	fc, err := ParseForecast(
		`{"city":"101281001","temp":"31","tempn":"25","weather":"多云","wd":"东南风","ws":"3-4级"}`,
		`{"fa":"01","fb":"01","fc":"31","fd":"25"}`,
	)
	require.NoError(t, err)
	assert.Equal(t, Forecast{
		Weather:    "多云",
		DayTempC:   31,
		NightTempC: 25,
		WindDir:    "东南风",
		WindScale:  "3-4级",
		HighC:      31,
		LowC:       25,
	}, fc)

	_, err = ParseForecast(`{"weather":"晴"}`, `not json`)
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseWeatherIndexPage(t *testing.T) {
	docs, err := payload.WeatherIndex([]byte(`var cityDZ ={"weatherinfo":{"weather":"晴","temp":"20","tempn":"12"}};var alarmDZ ={};` +
		`var dataSK ={"cityname":"北京","temp":"18","SD":"30%","aqi":"60","weathercode":"d00"};var dataZS ={};` +
		`var fc ={"f":[{"fa":"00","fc":"21","fd":"11"},{"fa":"01","fc":"19","fd":"10"}]}`))
	require.NoError(t, err)

	cur, err := ParseCurrentWeather(docs.Observation)
	require.NoError(t, err)
	assert.Equal(t, "北京", cur.City)
	assert.Equal(t, 0, cur.Icon)

	fc, err := ParseForecast(docs.City, docs.Forecast)
	require.NoError(t, err)
	assert.Equal(t, 21, fc.HighC)
	assert.Equal(t, 11, fc.LowC)
}

func TestParseFallbackDocuments(t *testing.T) {
	fb := payload.FallbackWeatherIndex
	cur, err := ParseCurrentWeather(fb.Observation)
	require.NoError(t, err)
	assert.Equal(t, "--", cur.City)

	fc, err := ParseForecast(fb.City, fb.Forecast)
	require.NoError(t, err)
	assert.Equal(t, "--", fc.Weather)
}

func TestIconCode(t *testing.T) {
	assert.Equal(t, 1, IconCode("d01"))
	assert.Equal(t, 7, IconCode("n7"))
	assert.Equal(t, 301, IconCode("d301"))
	assert.Equal(t, IconUnknown, IconCode(""))
	assert.Equal(t, IconUnknown, IconCode("dx"))
}

func TestParseAlmanac(t *testing.T) {
	data := []byte(`{"yearTips":"甲辰","typeDes":"休息日","chineseZodiac":"龙","solarTerms":"寒露后","lunarCalendar":"九月十七","suit":"祭祀.祈福.求嗣","avoid":"","weekOfYear":42}`)
	day := time.Date(2024, 10, 19, 0, 8, 0, 0, time.UTC)

	a, err := ParseAlmanac(data, day)
	require.NoError(t, err)
	assert.Equal(t, "甲辰", a.YearTips)
	assert.Equal(t, "九月十七", a.LunarCalendar)
	assert.Equal(t, 42, a.WeekOfYear)
	assert.Equal(t, time.Date(2024, 10, 19, 0, 0, 0, 0, time.UTC), a.Date)
	assert.True(t, a.Loaded())

	_, err = ParseAlmanac([]byte(`[`), day)
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseWarning(t *testing.T) {
	doc := payload.WarningDoc{
		Code:       "200",
		UpdateTime: "2024-10-19T14:20+08:00",
		Warning: []json.RawMessage{
			json.RawMessage(`{"id":"10128100120241019","sender":"湛江市气象台","pubTime":"2024-10-19T14:00+08:00","title":"湛江市气象台发布台风蓝色预警","status":"active","type":"1001","typeName":"台风","severityColor":"Blue","text":"预计未来24小时..."}`),
			json.RawMessage(`{"status":"cancel"}`),
		},
	}
	r, err := ParseWarning(doc)
	require.NoError(t, err)
	assert.True(t, r.Present)
	assert.True(t, r.Active())
	assert.Equal(t, 1001, r.Warning.Type)
	assert.Equal(t, "Blue", r.Warning.SeverityColor)
	assert.Equal(t, "200", r.Code)
}

func TestWarningReportActive(t *testing.T) {
	for status, want := range map[string]bool{
		"active": true,
		"update": true,
		"cancel": false,
		"Active": false,
		"":       false,
	} {
		r := WarningReport{Present: true, Warning: Warning{Status: status}}
		assert.Equal(t, want, r.Active(), status)
	}

	r, err := ParseWarning(payload.WarningDoc{Code: "200"})
	require.NoError(t, err)
	assert.False(t, r.Present)
	assert.False(t, r.Active())
	assert.Equal(t, NotLoaded, r.Warning.Status)
}

func TestParseWarning_MalformedEntry(t *testing.T) {
	_, err := ParseWarning(payload.WarningDoc{Warning: []json.RawMessage{json.RawMessage(`"oops"`)}})
	assert.ErrorIs(t, err, ErrParse)
}
