package spawn

import (
	"fmt"
	"sort"
	"time"
)

// Occurrence is a read projection of one entity's upcoming occurrence.
type Occurrence struct {
	Source    Source
	Name      string
	At        time.Time
	Countdown time.Duration
	Order     int // global declaration order: timers first, then weekly entries
}

// SortOccurrences orders by time, breaking ties by declaration order.
func SortOccurrences(occ []Occurrence) {
	sort.SliceStable(occ, func(i, j int) bool {
		if !occ[i].At.Equal(occ[j].At) {
			return occ[i].At.Before(occ[j].At)
		}
		return occ[i].Order < occ[j].Order
	})
}

// FormatCountdown renders a duration as 1h02m03s; negative values clamp to zero.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%dh%02dm%02ds", total/3600, (total%3600)/60, total%60)
}
