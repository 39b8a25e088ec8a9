package sla

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// DayHours is an open window expressed in minutes since local midnight.
type DayHours struct {
	StartMinute int
	EndMinute   int
}

// HolidaySet holds full calendar days excluded from business hours.
type HolidaySet map[string]struct{}

// Contains reports whether the local date of t is a holiday.
func (h HolidaySet) Contains(t time.Time) bool {
	if len(h) == 0 {
		return false
	}
	_, ok := h[t.Format(dateLayout)]
	return ok
}

// BusinessCalendar is the weekly schedule SLA clocks run on. A weekday
// without an entry is closed all day.
type BusinessCalendar struct {
	Location *time.Location
	Days     map[time.Weekday]DayHours
	Holidays HolidaySet
}

// NewBusinessCalendar validates the weekly schedule.
func NewBusinessCalendar(loc *time.Location, days map[time.Weekday]DayHours, holidays HolidaySet) (*BusinessCalendar, error) {
	if loc == nil {
		loc = time.UTC
	}
	for day, hours := range days {
		if hours.StartMinute < 0 || hours.EndMinute > 24*60 {
			return nil, &ConfigError{Field: "business_hours", Reason: fmt.Sprintf("%s window out of range", strings.ToLower(day.String()))}
		}
		if hours.StartMinute >= hours.EndMinute {
			return nil, &ConfigError{Field: "business_hours", Reason: fmt.Sprintf("%s opens at or after it closes", strings.ToLower(day.String()))}
		}
	}
	if holidays == nil {
		holidays = HolidaySet{}
	}
	return &BusinessCalendar{Location: loc, Days: days, Holidays: holidays}, nil
}

// StandardWeek returns Monday to Friday, 09:00 to 17:00.
func StandardWeek() map[time.Weekday]DayHours {
	days := make(map[time.Weekday]DayHours, 5)
	for d := time.Monday; d <= time.Friday; d++ {
		days[d] = DayHours{StartMinute: 9 * 60, EndMinute: 17 * 60}
	}
	return days
}

// BusinessHoursBetween returns the open hours between start and end,
// rounded to two decimals. It never returns a negative duration.
func (c *BusinessCalendar) BusinessHoursBetween(start, end time.Time) float64 {
	if !start.Before(end) {
		return 0
	}
	start = start.In(c.Location)
	end = end.In(c.Location)

	var total time.Duration
	day := midnight(start)
	last := midnight(end)
	for !day.After(last) {
		if hours, open := c.Days[day.Weekday()]; open && !c.Holidays.Contains(day) {
			opens := clockOn(day, hours.StartMinute)
			closes := clockOn(day, hours.EndMinute)
			from := latest(start, opens)
			to := earliest(end, closes)
			if to.After(from) {
				total += to.Sub(from)
			}
		}
		day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, c.Location)
	}

	return math.Round(total.Minutes()/60*100) / 100
}

// IsOpen reports whether t falls inside a business window.
func (c *BusinessCalendar) IsOpen(t time.Time) bool {
	t = t.In(c.Location)
	hours, open := c.Days[t.Weekday()]
	if !open || c.Holidays.Contains(t) {
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	return minute >= hours.StartMinute && minute < hours.EndMinute
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// clockOn resolves a minute-of-day on day's date in wall-clock terms.
func clockOn(day time.Time, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, minute, 0, 0, day.Location())
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeeklyHours parses "monday=09:00-17:00,tuesday=09:00-17:00".
// Weekdays left out are closed.
func ParseWeeklyHours(spec string) (map[time.Weekday]DayHours, error) {
	days := make(map[time.Weekday]DayHours)
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, window, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, &ConfigError{Field: "business_hours", Reason: fmt.Sprintf("entry %q must look like day=HH:MM-HH:MM", entry)}
		}
		day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, &ConfigError{Field: "business_hours", Reason: fmt.Sprintf("unknown weekday %q", name)}
		}
		if _, dup := days[day]; dup {
			return nil, &ConfigError{Field: "business_hours", Reason: fmt.Sprintf("weekday %q listed twice", name)}
		}
		from, to, ok := strings.Cut(window, "-")
		if !ok {
			return nil, &ConfigError{Field: "business_hours", Reason: fmt.Sprintf("window %q must look like HH:MM-HH:MM", window)}
		}
		startMin, err := parseClock(from)
		if err != nil {
			return nil, err
		}
		endMin, err := parseClock(to)
		if err != nil {
			return nil, err
		}
		if startMin >= endMin {
			return nil, &ConfigError{Field: "business_hours", Reason: fmt.Sprintf("%s opens at or after it closes", name)}
		}
		days[day] = DayHours{StartMinute: startMin, EndMinute: endMin}
	}
	if len(days) == 0 {
		return nil, &ConfigError{Field: "business_hours", Reason: "no business days configured"}
	}
	return days, nil
}

func parseClock(value string) (int, error) {
	value = strings.TrimSpace(value)
	hh, mm, ok := strings.Cut(value, ":")
	if !ok {
		return 0, &ConfigError{Field: "business_hours", Reason: fmt.Sprintf("time %q must be HH:MM", value)}
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return 0, &ConfigError{Field: "business_hours", Reason: fmt.Sprintf("time %q has a bad hour", value)}
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return 0, &ConfigError{Field: "business_hours", Reason: fmt.Sprintf("time %q has a bad minute", value)}
	}
	if minute < 0 || minute > 59 || hour < 0 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, &ConfigError{Field: "business_hours", Reason: fmt.Sprintf("time %q out of range", value)}
	}
	return hour*60 + minute, nil
}

// ParseHolidays parses YYYY-MM-DD dates.
func ParseHolidays(dates []string) (HolidaySet, error) {
	set := make(HolidaySet, len(dates))
	for _, raw := range dates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, &ConfigError{Field: "holidays", Reason: fmt.Sprintf("date %q must be YYYY-MM-DD", raw)}
		}
		set[d.Format(dateLayout)] = struct{}{}
	}
	return set, nil
}

type holidaysFile struct {
	Holidays []string `json:"holidays"`
}

// LoadHolidaysFile reads {"holidays": ["2026-12-25", ...]}.
func LoadHolidaysFile(path string) (HolidaySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "holidays_file", Reason: err.Error()}
	}
	var hf holidaysFile
	if err := json.Unmarshal(data, &hf); err != nil {
		return nil, &ConfigError{Field: "holidays_file", Reason: err.Error()}
	}
	return ParseHolidays(hf.Holidays)
}

// Merge adds the other set's dates to h.
func (h HolidaySet) Merge(other HolidaySet) HolidaySet {
	if h == nil {
		h = HolidaySet{}
	}
	for d := range other {
		h[d] = struct{}{}
	}
	return h
}
