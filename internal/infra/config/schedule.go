package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"spawn_warning_bot/internal/domain/spawn"

	"gopkg.in/yaml.v3"
)

// ScheduleFile is the on-disk seed for timers and the full weekly schedule.
type ScheduleFile struct {
	Timers []TimerRecord  `yaml:"timers"`
	Weekly []WeeklyRecord `yaml:"weekly"`
}

type TimerRecord struct {
	Name            string `yaml:"name"`
	IntervalMinutes int64  `yaml:"interval_minutes"`
	LastOccurrence  string `yaml:"last_occurrence"` // spawn.DisplayLayout
}

type WeeklyRecord struct {
	Name  string       `yaml:"name"`
	Slots []SlotRecord `yaml:"slots"`
}

type SlotRecord struct {
	Day  string `yaml:"day"`
	Time string `yaml:"time"` // HH:MM, 24-hour
}

// Schedule is the validated content of a ScheduleFile, in declaration order.
type Schedule struct {
	Timers []*spawn.FixedIntervalTimer
	Weekly []spawn.WeeklyScheduleEntry
}

// LoadSchedule reads and validates the schedule file. Malformed records are dropped and their
// errors returned joined alongside the records that did validate.
func LoadSchedule(path string, loc *time.Location) (*Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}
	return ParseSchedule(data, loc)
}

func ParseSchedule(data []byte, loc *time.Location) (*Schedule, error) {
	var file ScheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse schedule file: %w", err)
	}

	sched := &Schedule{}
	var errs []error
	seen := make(map[string]bool)

	for i, rec := range file.Timers {
		t, err := rec.toTimer(loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("timers[%d]: %w", i, err))
			continue
		}
		if seen[t.Name] {
			errs = append(errs, fmt.Errorf("timers[%d]: duplicate timer name %q", i, t.Name))
			continue
		}
		seen[t.Name] = true
		t.Position = len(sched.Timers)
		sched.Timers = append(sched.Timers, t)
	}

	weeklySeen := make(map[string]bool)
	for i, rec := range file.Weekly {
		e, err := rec.toEntry()
		if err != nil {
			errs = append(errs, fmt.Errorf("weekly[%d]: %w", i, err))
			continue
		}
		if weeklySeen[e.Name] {
			errs = append(errs, fmt.Errorf("weekly[%d]: duplicate weekly name %q", i, e.Name))
			continue
		}
		weeklySeen[e.Name] = true
		e.Position = len(sched.Weekly)
		sched.Weekly = append(sched.Weekly, e)
	}

	return sched, errors.Join(errs...)
}

func (r TimerRecord) toTimer(loc *time.Location) (*spawn.FixedIntervalTimer, error) {
	if strings.Contains(r.Name, "|") {
		return nil, fmt.Errorf("timer name %q must not contain '|'", r.Name)
	}
	if r.IntervalMinutes <= 0 {
		return nil, fmt.Errorf("timer %q: interval_minutes must be positive, got %d", r.Name, r.IntervalMinutes)
	}
	if r.IntervalMinutes > spawn.MaxIntervalSeconds/60 {
		return nil, fmt.Errorf("timer %q: interval_minutes must be at most %d, got %d", r.Name, spawn.MaxIntervalSeconds/60, r.IntervalMinutes)
	}
	last, err := time.ParseInLocation(spawn.DisplayLayout, strings.TrimSpace(r.LastOccurrence), loc)
	if err != nil {
		return nil, fmt.Errorf("timer %q: invalid last_occurrence %q: %w", r.Name, r.LastOccurrence, err)
	}
	return spawn.NewFixedIntervalTimer(r.Name, r.IntervalMinutes*60, last)
}

func (r WeeklyRecord) toEntry() (spawn.WeeklyScheduleEntry, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return spawn.WeeklyScheduleEntry{}, fmt.Errorf("weekly entry name must not be empty")
	}
	if strings.Contains(name, "|") {
		return spawn.WeeklyScheduleEntry{}, fmt.Errorf("weekly name %q must not contain '|'", name)
	}
	if len(r.Slots) == 0 {
		return spawn.WeeklyScheduleEntry{}, fmt.Errorf("weekly entry %q has no slots", name)
	}
	entry := spawn.WeeklyScheduleEntry{Name: name}
	for _, s := range r.Slots {
		slot, err := spawn.ParseWeeklySlot(s.Day, s.Time)
		if err != nil {
			return spawn.WeeklyScheduleEntry{}, fmt.Errorf("weekly entry %q: %w", name, err)
		}
		entry.Slots = append(entry.Slots, slot)
	}
	return entry, nil
}
