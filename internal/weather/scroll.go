package weather

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxScroll bounds the number of entries of one almanac scroll set.
const MaxScroll = 50

// ErrScrollOverflow is returned when an almanac needs more than MaxScroll
// lines.
var ErrScrollOverflow = errors.New("almanac scroll set overflow")

var weekdays = [...]string{"日", "一", "二", "三", "四", "五", "六"}

// WeatherTicker renders the rotating weather lines.
func WeatherTicker(cur CurrentWeather, fc Forecast) []ScrollEntry {
	lines := []string{
		"实时天气 " + cur.Weather,
		"空气质量 " + cur.AQILevel().Label,
		"风向 " + cur.WindDir + cur.WindScale,
		"今日" + fc.Weather,
		"最低温度" + strconv.Itoa(fc.LowC) + "℃",
		"最高温度" + strconv.Itoa(fc.HighC) + "℃",
	}
	out := make([]ScrollEntry, len(lines))
	for i, l := range lines {
		out[i] = ScrollEntry{Text: l, Color: ColorWhite}
	}
	return out
}

// AlmanacScroll renders the header lines followed by the "suitable" pairs
// in green and the "avoid" pairs in red.
func AlmanacScroll(day AlmanacDay) ([]ScrollEntry, error) {
	out := []ScrollEntry{
		{Text: fmt.Sprintf("%d月%d日 周%s", int(day.Date.Month()), day.Date.Day(), weekdays[day.Date.Weekday()]), Color: ColorWhite},
		{Text: day.YearTips + "年 " + day.LunarCalendar, Color: ColorWhite},
		{Text: day.ChineseZodiac + "年" + strconv.Itoa(day.WeekOfYear) + "周 " + day.TypeDes, Color: ColorWhite},
	}
	out = appendPairs(out, "宜:", day.Suit, ColorGreen, ColorWhite)
	out = appendPairs(out, "忌:", day.Avoid, ColorRed, ColorRed)
	if len(out) > MaxScroll {
		return nil, fmt.Errorf("%w: %d entries, max %d", ErrScrollOverflow, len(out), MaxScroll)
	}
	return out, nil
}

// appendPairs adds one line per two segments. An empty list adds the bare
// prefix in emptyColor.
func appendPairs(out []ScrollEntry, prefix, list string, color, emptyColor Color) []ScrollEntry {
	segs := Segments(list)
	if len(segs) == 0 {
		return append(out, ScrollEntry{Text: prefix, Color: emptyColor})
	}
	for i := 0; i < len(segs); i += 2 {
		out = append(out, ScrollEntry{Text: prefix + segs[i] + " " + segs[i+1], Color: color})
	}
	return out
}

// Segments splits a "."-separated list, dropping empty segments. An odd
// count is padded with one empty trailing segment.
func Segments(list string) []string {
	var segs []string
	for _, s := range strings.Split(list, ".") {
		if s = strings.TrimSpace(s); s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs)%2 == 1 {
		segs = append(segs, "")
	}
	return segs
}
