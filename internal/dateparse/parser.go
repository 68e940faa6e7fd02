// Package dateparse converts free-text due-date expressions into absolute
// timestamps. It understands English and Japanese vocabulary for relative
// days, weekday names, and a handful of absolute date shapes.
package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// defaultHour/defaultMinute are applied when the input carries no clock
// time: a date-only expression resolves to end of day.
const (
	defaultHour   = 23
	defaultMinute = 59
)

// clockPattern extracts an optional trailing HH:MM from the input.
var clockPattern = regexp.MustCompile(`(\d{1,2}):(\d{2})$`)

// relativePattern pairs an anchored expression with the offset it yields
// from the current moment.
type relativePattern struct {
	re *regexp.Regexp
	fn func(now time.Time, n int) time.Time
}

var relativePatterns = []relativePattern{
	{regexp.MustCompile(`^(今日|today)$`), func(now time.Time, _ int) time.Time { return now }},
	{regexp.MustCompile(`^(明日|tomorrow)$`), func(now time.Time, _ int) time.Time { return now.AddDate(0, 0, 1) }},
	{regexp.MustCompile(`^(明後日|day after tomorrow)$`), func(now time.Time, _ int) time.Time { return now.AddDate(0, 0, 2) }},
	// Yesterday yields a past timestamp; accepted as valid on purpose.
	{regexp.MustCompile(`^(昨日|yesterday)$`), func(now time.Time, _ int) time.Time { return now.AddDate(0, 0, -1) }},
	{regexp.MustCompile(`^(\d+)\s*(日後|days?)$`), func(now time.Time, n int) time.Time { return now.AddDate(0, 0, n) }},
	{regexp.MustCompile(`^(\d+)\s*(週間後|weeks?)$`), func(now time.Time, n int) time.Time { return now.AddDate(0, 0, 7*n) }},
	{regexp.MustCompile(`^(\d+)\s*(時間後|hours?)$`), func(now time.Time, n int) time.Time { return now.Add(time.Duration(n) * time.Hour) }},
	{regexp.MustCompile(`^(\d+)\s*(分後|mins?|minutes?)$`), func(now time.Time, n int) time.Time { return now.Add(time.Duration(n) * time.Minute) }},
}

// weekdayName maps a weekday vocabulary entry to its day number,
// Monday = 0 through Sunday = 6.
type weekdayName struct {
	name string
	num  int
}

// weekdayNames is checked in order; kanji first, then full English names,
// then abbreviations, so "sunday" resolves before "sun" gets a chance.
var weekdayNames = []weekdayName{
	{"月", 0}, {"火", 1}, {"水", 2}, {"木", 3}, {"金", 4}, {"土", 5}, {"日", 6},
	{"monday", 0}, {"tuesday", 1}, {"wednesday", 2}, {"thursday", 3},
	{"friday", 4}, {"saturday", 5}, {"sunday", 6},
	{"mon", 0}, {"tue", 1}, {"wed", 2}, {"thu", 3}, {"fri", 4}, {"sat", 5}, {"sun", 6},
}

// absolutePatterns are tried in order. The two-field numeric form is
// month/day, never day/month.
var absolutePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})$`),
	regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})$`),
	regexp.MustCompile(`^(\d{4})年(\d{1,2})月(\d{1,2})日$`),
	regexp.MustCompile(`^(\d{1,2})月(\d{1,2})日$`),
}

// Parse resolves a free-text due-date expression against the current
// moment. It returns the absolute timestamp and true, or the zero time and
// false when the input is not understood. Parse never panics on malformed
// input.
func Parse(input string, now time.Time) (time.Time, bool) {
	t := strings.ToLower(strings.TrimSpace(input))

	hour, minute := defaultHour, defaultMinute
	if m := clockPattern.FindStringSubmatchIndex(t); m != nil {
		h, _ := strconv.Atoi(t[m[2]:m[3]])
		mi, _ := strconv.Atoi(t[m[4]:m[5]])
		if h > 23 || mi > 59 {
			return time.Time{}, false
		}
		hour, minute = h, mi
		t = strings.TrimSpace(t[:m[0]])
	}

	for _, p := range relativePatterns {
		m := p.re.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		n := 0
		if v, err := strconv.Atoi(m[1]); err == nil {
			n = v
		}
		return atClock(p.fn(now, n), hour, minute), true
	}

	if dt, ok := matchWeekday(t, now, hour, minute); ok {
		return dt, true
	}

	for _, re := range absolutePatterns {
		m := re.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		var year, month, day int
		if len(m[1]) == 4 {
			year, _ = strconv.Atoi(m[1])
			month, _ = strconv.Atoi(m[2])
			day, _ = strconv.Atoi(m[3])
		} else {
			month, _ = strconv.Atoi(m[1])
			day, _ = strconv.Atoi(m[2])
			year = now.Year()
		}
		return calendarDate(year, month, day, hour, minute, now.Location())
	}

	return time.Time{}, false
}

// matchWeekday resolves a weekday-name expression to the next occurrence of
// that weekday strictly after today. Matching is by substring containment,
// except that a kanji weekday character immediately preceded by a digit is
// skipped so absolute forms like 3月4日 fall through to the date patterns.
func matchWeekday(t string, now time.Time, hour, minute int) (time.Time, bool) {
	// time.Weekday counts from Sunday; the vocabulary counts from Monday.
	today := (int(now.Weekday()) + 6) % 7

	for _, w := range weekdayNames {
		idx := strings.Index(t, w.name)
		if idx < 0 {
			continue
		}
		if isKanjiWeekday(w.name) && precededByDigit(t, idx) {
			continue
		}
		d := w.num - today
		if d <= 0 {
			d += 7
		}
		return atClock(now.AddDate(0, 0, d), hour, minute), true
	}
	return time.Time{}, false
}

// isKanjiWeekday reports whether name is a single-kanji weekday entry.
func isKanjiWeekday(name string) bool {
	return len(name) > 1 && len([]rune(name)) == 1
}

// precededByDigit reports whether the byte position idx in t directly
// follows an ASCII digit.
func precededByDigit(t string, idx int) bool {
	return idx > 0 && t[idx-1] >= '0' && t[idx-1] <= '9'
}

// atClock pins dt to the given clock time, dropping seconds.
func atClock(dt time.Time, hour, minute int) time.Time {
	return time.Date(dt.Year(), dt.Month(), dt.Day(), hour, minute, 0, 0, dt.Location())
}

// calendarDate builds an absolute date, rejecting inputs that are not real
// calendar dates (month 13, day 32) instead of letting them normalize.
func calendarDate(year, month, day, hour, minute int, loc *time.Location) (time.Time, bool) {
	dt := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if dt.Year() != year || int(dt.Month()) != month || dt.Day() != day {
		return time.Time{}, false
	}
	return dt, true
}
