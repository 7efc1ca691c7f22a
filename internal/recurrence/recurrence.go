// Package recurrence decides whether a reminder fires at a given minute.
//
// Everything here is pure: no clocks are read and no I/O happens, so callers
// pass the tick instant explicitly.
package recurrence

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Frequency values as stored in the reminders table.
const (
	FrequencyDaily    = "daily"
	FrequencyWeekly   = "weekly"
	FrequencyInterval = "interval"
)

const DateFormat = "2006-01-02"

var (
	ErrUnknownFrequency = errors.New("unknown frequency")
	ErrNoWeekdays       = errors.New("weekly reminder needs at least one weekday")
	ErrInvalidInterval  = errors.New("day interval must be a positive integer")
	ErrInvalidClock     = errors.New("time must be HH:MM")
)

// Rule is one of Daily, Weekly or Interval.
type Rule interface {
	// firesOn reports whether the rule selects day, given the medicine start
	// date. Both are local calendar dates at midnight.
	firesOn(day, start time.Time) bool
	Frequency() string
	String() string
}

type Daily struct{}

func (Daily) firesOn(_, _ time.Time) bool { return true }
func (Daily) Frequency() string           { return FrequencyDaily }
func (Daily) String() string              { return "daily" }

// Weekly fires on every weekday present in Days.
type Weekly struct {
	Days []time.Weekday
}

func (w Weekly) firesOn(day, _ time.Time) bool {
	for _, wd := range w.Days {
		if wd == day.Weekday() {
			return true
		}
	}
	return false
}

func (Weekly) Frequency() string { return FrequencyWeekly }

func (w Weekly) String() string {
	return "weekly on " + FormatWeekdays(w.Days)
}

// Interval fires every Days days counted from the medicine start date.
type Interval struct {
	Days int
}

func (i Interval) firesOn(day, start time.Time) bool {
	if i.Days <= 0 {
		return false
	}
	return DaysBetween(start, day)%i.Days == 0
}

func (Interval) Frequency() string { return FrequencyInterval }

func (i Interval) String() string {
	return fmt.Sprintf("every %d days", i.Days)
}

// Clock is a time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock accepts "HH:MM" and the "HH:MM:SS" form browsers send from
// time inputs. Seconds are dropped.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return Clock{}, ErrInvalidClock
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, ErrInvalidClock
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Clock{}, ErrInvalidClock
	}
	return Clock{Hour: h, Minute: m}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Matches is exact equality on hour and minute.
func (c Clock) Matches(t time.Time) bool {
	return t.Hour() == c.Hour && t.Minute() == c.Minute
}

// Schedule is everything needed to evaluate one reminder.
type Schedule struct {
	At   Clock
	Rule Rule
}

// IsDueNow reports whether now is a due occurrence for a medicine whose
// course starts on start. Only the calendar date of start is used.
func (s Schedule) IsDueNow(now, start time.Time) bool {
	if s.Rule == nil {
		return false
	}
	today := midnight(now)
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, now.Location())
	if today.Before(first) {
		return false
	}
	if !s.At.Matches(now) {
		return false
	}
	return s.Rule.firesOn(today, first)
}

// Parse builds a Rule from the three storage columns. Parameters belonging to
// the other frequencies are ignored. Unrecognized weekday names are dropped;
// a weekly rule is rejected only when no valid day remains.
func Parse(frequency, weekDays string, dayInterval int) (Rule, error) {
	switch strings.ToLower(strings.TrimSpace(frequency)) {
	case FrequencyDaily:
		return Daily{}, nil
	case FrequencyWeekly:
		days, _ := splitWeekdays(weekDays)
		if len(days) == 0 {
			return nil, ErrNoWeekdays
		}
		return Weekly{Days: days}, nil
	case FrequencyInterval:
		if dayInterval <= 0 {
			return nil, ErrInvalidInterval
		}
		return Interval{Days: dayInterval}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrequency, frequency)
	}
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

// ParseWeekdays reads a comma separated list of full weekday names.
// Duplicates collapse; order follows the input. Any unknown name is an error.
func ParseWeekdays(s string) ([]time.Weekday, error) {
	days, unknown := splitWeekdays(s)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("invalid weekday: %s", strings.Join(unknown, ", "))
	}
	return days, nil
}

// splitWeekdays returns the recognized days of s and the names it could not
// read.
func splitWeekdays(s string) (days []time.Weekday, unknown []string) {
	seen := make(map[time.Weekday]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		wd, ok := weekdayNames[part]
		if !ok {
			unknown = append(unknown, part)
			continue
		}
		if !seen[wd] {
			seen[wd] = true
			days = append(days, wd)
		}
	}
	return days, unknown
}

// FormatWeekdays is the storage form of a weekday set, e.g. "Monday,Wednesday".
func FormatWeekdays(days []time.Weekday) string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()
	}
	return strings.Join(names, ",")
}

// DaysBetween counts whole calendar days between a and b, ignoring order.
// Rounding absorbs the 23h/25h days around DST transitions.
func DaysBetween(a, b time.Time) int {
	d := midnight(b).Sub(midnight(a)).Hours() / 24
	return int(math.Round(math.Abs(d)))
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ParseDate reads a YYYY-MM-DD calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateFormat, strings.TrimSpace(s), loc)
}
