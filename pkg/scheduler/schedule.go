package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule determines when a job should run next.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

type dailySchedule struct {
	hour   int
	minute int
}

func (s dailySchedule) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), s.hour, s.minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}

type hourlySchedule struct {
	minute int
}

func (s hourlySchedule) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), s.minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.Add(time.Hour)
	}
	return next
}

func (s hourlySchedule) String() string {
	return fmt.Sprintf("hourly at :%02d", s.minute)
}

// EveryInterval runs a job at a fixed interval. Non-positive intervals are
// raised to one minute.
func EveryInterval(d time.Duration) Schedule {
	if d <= 0 {
		d = time.Minute
	}
	return intervalSchedule{every: d}
}

// DailyAt runs a job once a day at hour:minute in the scheduler's location.
// Out of range values are clamped.
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: clamp(hour, 0, 23), minute: clamp(minute, 0, 59)}
}

// HourlyAt runs a job every hour at the given minute.
func HourlyAt(minute int) Schedule {
	return hourlySchedule{minute: clamp(minute, 0, 59)}
}

// ParseDaily parses "HH:MM" into a daily schedule.
func ParseDaily(hhmm string) (Schedule, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchedule, hhmm)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return nil, fmt.Errorf("%w: hour in %q", ErrInvalidSchedule, hhmm)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("%w: minute in %q", ErrInvalidSchedule, hhmm)
	}
	return DailyAt(hour, minute), nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
