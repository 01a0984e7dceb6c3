package spawn

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WeeklySlot is one (weekday, time-of-day) pair in the clock's zone.
type WeeklySlot struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

func (s WeeklySlot) String() string {
	return fmt.Sprintf("%s %02d:%02d", s.Weekday, s.Hour, s.Minute)
}

// WeeklyScheduleEntry is static configuration; its next occurrence is recomputed on every query.
type WeeklyScheduleEntry struct {
	Name     string
	Slots    []WeeklySlot
	Position int
}

// NextWeeklyOccurrence returns the soonest instant strictly after now that falls on weekday at
// hour:minute in now's location. An instant equal to now counts as already passed.
func NextWeeklyOccurrence(weekday time.Weekday, hour, minute int, now time.Time) time.Time {
	offset := (int(weekday) - int(now.Weekday()) + 7) % 7
	candidate := time.Date(now.Year(), now.Month(), now.Day()+offset, hour, minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = time.Date(now.Year(), now.Month(), now.Day()+offset+7, hour, minute, 0, 0, now.Location())
	}
	return candidate
}

// Next returns the soonest future occurrence across all slots. Equal instants keep the earlier slot.
func (e WeeklyScheduleEntry) Next(now time.Time) (time.Time, bool) {
	var best time.Time
	found := false
	for _, slot := range e.Slots {
		at := NextWeeklyOccurrence(slot.Weekday, slot.Hour, slot.Minute, now)
		if !found || at.Before(best) {
			best = at
			found = true
		}
	}
	return best, found
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeeklySlot parses a weekday name and an "HH:MM" 24-hour time.
func ParseWeeklySlot(day, clock string) (WeeklySlot, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(day))]
	if !ok {
		return WeeklySlot{}, fmt.Errorf("unknown weekday %q", day)
	}
	hh, mm, found := strings.Cut(strings.TrimSpace(clock), ":")
	if !found {
		return WeeklySlot{}, fmt.Errorf("invalid time %q, expected HH:MM", clock)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return WeeklySlot{}, fmt.Errorf("invalid hour in %q", clock)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return WeeklySlot{}, fmt.Errorf("invalid minute in %q", clock)
	}
	return WeeklySlot{Weekday: wd, Hour: hour, Minute: minute}, nil
}
