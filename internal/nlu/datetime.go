package nlu

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var clockPattern = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*$`)

// ResolveDate turns a date phrase into midnight local time of that day.
// Weekday names resolve to the next occurrence strictly after today.
func ResolveDate(phrase string, now time.Time) (time.Time, bool) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch phrase {
	case "":
		return time.Time{}, false
	case "today":
		return midnight, true
	case "tomorrow":
		return midnight.AddDate(0, 0, 1), true
	}

	if wd, ok := weekdays[phrase]; ok {
		days := (int(wd) - int(now.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return midnight.AddDate(0, 0, days), true
	}

	if t, err := time.ParseInLocation("2006-01-02", phrase, now.Location()); err == nil {
		return t, true
	}

	// m/d or m/d/y
	if parts := strings.Split(phrase, "/"); len(parts) == 2 || len(parts) == 3 {
		month, err1 := strconv.Atoi(parts[0])
		day, err2 := strconv.Atoi(parts[1])
		if err1 == nil && err2 == nil && month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			year := now.Year()
			if len(parts) == 3 {
				if y, err := strconv.Atoi(parts[2]); err == nil {
					if y < 100 {
						y += 2000
					}
					year = y
				}
			}
			t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
			// A bare m/d already past this year means next year
			if len(parts) == 2 && t.Before(midnight) {
				t = t.AddDate(1, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// ResolveClockTime parses a clock phrase like "9am", "14:00", "9:30 pm"
// into hour and minute.
func ResolveClockTime(phrase string) (hour, minute int, ok bool) {
	m := clockPattern.FindStringSubmatch(phrase)
	if m == nil {
		return 0, 0, false
	}

	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}

	meridiem := strings.ToLower(m[3])
	switch {
	case meridiem == "pm" && hour < 12:
		hour += 12
	case meridiem == "am" && hour == 12:
		hour = 0
	case meridiem == "" && hour > 23:
		return 0, 0, false
	}

	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
