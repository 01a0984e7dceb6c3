// internal/domain/spawn/timer.go
package spawn

import (
	"fmt"
	"strings"
	"time"
)

// Source tags the namespace an entity belongs to.
type Source string

const (
	SourceField  Source = "FIELD"  // fixed-interval timers
	SourceWeekly Source = "WEEKLY" // weekly scheduled entries
)

// DisplayLayout is how occurrence times are shown to people and stored in the schedule file.
const DisplayLayout = "2006-01-02 03:04 PM"

var ErrTimerNotFound = fmt.Errorf("timer not found")
var ErrInvalidInterval = fmt.Errorf("interval must be between one second and 366 days")
var ErrEmptyName = fmt.Errorf("timer name must not be empty")
var ErrInvalidTimestamp = fmt.Errorf("invalid timestamp")

// MaxIntervalSeconds caps intervals well below the point where time.Duration overflows.
const MaxIntervalSeconds int64 = 366 * 24 * 60 * 60

// ValidInterval reports whether seconds is a usable timer interval.
func ValidInterval(seconds int64) bool {
	return seconds > 0 && seconds <= MaxIntervalSeconds
}

// FixedIntervalTimer is an event that recurs every IntervalSeconds after LastOccurrence.
// NextOccurrence is always LastOccurrence + IntervalSeconds; use the setters to keep it that way.
type FixedIntervalTimer struct {
	Name            string
	IntervalSeconds int64
	LastOccurrence  time.Time
	NextOccurrence  time.Time
	Position        int // declaration order, used to break ties
	UpdatedAt       time.Time
}

// NewFixedIntervalTimer validates the configuration and derives NextOccurrence.
func NewFixedIntervalTimer(name string, intervalSeconds int64, last time.Time) (*FixedIntervalTimer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if !ValidInterval(intervalSeconds) {
		return nil, fmt.Errorf("timer %q: %w", name, ErrInvalidInterval)
	}
	if last.IsZero() {
		return nil, fmt.Errorf("timer %q: last occurrence is not set", name)
	}
	t := &FixedIntervalTimer{Name: name, IntervalSeconds: intervalSeconds}
	t.SetLastOccurrence(last)
	return t, nil
}

func (t *FixedIntervalTimer) Interval() time.Duration {
	return time.Duration(t.IntervalSeconds) * time.Second
}

// IntervalMinutes is the persisted representation of the interval.
func (t *FixedIntervalTimer) IntervalMinutes() int64 {
	return t.IntervalSeconds / 60
}

// SetLastOccurrence moves the pair to a new last occurrence.
func (t *FixedIntervalTimer) SetLastOccurrence(last time.Time) {
	t.LastOccurrence = last
	t.NextOccurrence = last.Add(t.Interval())
}

// SetInterval changes the interval and recomputes NextOccurrence from the current last occurrence.
func (t *FixedIntervalTimer) SetInterval(seconds int64) error {
	if !ValidInterval(seconds) {
		return ErrInvalidInterval
	}
	t.IntervalSeconds = seconds
	t.NextOccurrence = t.LastOccurrence.Add(t.Interval())
	return nil
}

// Consistent reports whether the stored pair satisfies next == last + interval.
func (t *FixedIntervalTimer) Consistent() bool {
	return ValidInterval(t.IntervalSeconds) && t.NextOccurrence.Equal(t.LastOccurrence.Add(t.Interval()))
}

var inputLayouts = []string{DisplayLayout, "2006-01-02 15:04", "2006-01-02 3:04 PM", "2006-01-02 3:04PM"}

// ParseOccurrenceTime parses an operator-supplied timestamp in loc.
func ParseOccurrenceTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q, expected %q", ErrInvalidTimestamp, raw, DisplayLayout)
}
