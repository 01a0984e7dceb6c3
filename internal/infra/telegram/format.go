package telegram

import (
	"fmt"
	"strings"
	"time"

	"spawn_warning_bot/internal/domain/spawn"
)

func formatOccurrence(o spawn.Occurrence) string {
	tag := ""
	if o.Source == spawn.SourceWeekly {
		tag = " [weekly]"
	}
	return fmt.Sprintf("%s%s: %s (in %s)", o.Name, tag, o.At.Format(spawn.DisplayLayout), spawn.FormatCountdown(o.Countdown))
}

func formatOccurrenceList(occ []spawn.Occurrence) string {
	if len(occ) == 0 {
		return "No timers configured."
	}
	var b strings.Builder
	b.WriteString("--- Upcoming spawns ---\n")
	for _, o := range occ {
		b.WriteString(formatOccurrence(o))
		b.WriteString("\n")
	}
	return b.String()
}

func formatTimer(t *spawn.FixedIntervalTimer, now time.Time) string {
	return fmt.Sprintf("%s: last %s, next %s (in %s), every %s",
		t.Name,
		t.LastOccurrence.Format(spawn.DisplayLayout),
		t.NextOccurrence.Format(spawn.DisplayLayout),
		spawn.FormatCountdown(t.NextOccurrence.Sub(now)),
		t.Interval().String(),
	)
}

func formatEdits(edits []*spawn.Edit, loc *time.Location) string {
	if len(edits) == 0 {
		return "No edits recorded."
	}
	var b strings.Builder
	b.WriteString("--- Edit history ---\n")
	for _, e := range edits {
		fmt.Fprintf(&b, "%s  %s: %s -> %s by %s\n",
			e.EditedAt.In(loc).Format(spawn.DisplayLayout),
			e.TimerName,
			e.OldLastOccurrence.In(loc).Format(spawn.DisplayLayout),
			e.NewLastOccurrence.In(loc).Format(spawn.DisplayLayout),
			e.EditedBy,
		)
	}
	return b.String()
}

// splitNameAndTimestamp separates "<name with spaces> <YYYY-MM-DD> <hh:mm> [AM|PM]".
func splitNameAndTimestamp(args []string) (name, timestamp string, ok bool) {
	n := 2
	if len(args) > 0 {
		last := strings.ToUpper(args[len(args)-1])
		if last == "AM" || last == "PM" {
			n = 3
		}
	}
	if len(args) <= n {
		return "", "", false
	}
	return strings.Join(args[:len(args)-n], " "), strings.Join(args[len(args)-n:], " "), true
}
