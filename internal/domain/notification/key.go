// internal/domain/notification/key.go
package notification

import (
	"fmt"
	"strings"
	"time"

	"spawn_warning_bot/internal/domain/spawn"
)

// KeyMinuteLayout is the minute-granularity timestamp embedded in every dedup key.
const KeyMinuteLayout = "2006-01-02 15:04"

const keySeparator = "|"

// Key identifies one (source, entity, occurrence minute) warning.
type Key struct {
	Source spawn.Source
	Entity string
	Minute string // occurrence formatted with KeyMinuteLayout
}

// NewKey truncates the occurrence to the minute in its own location.
func NewKey(source spawn.Source, entity string, occurrence time.Time) Key {
	return Key{
		Source: source,
		Entity: entity,
		Minute: occurrence.Truncate(time.Minute).Format(KeyMinuteLayout),
	}
}

// String is the persisted form: SOURCE|entity|YYYY-MM-DD HH:MM.
func (k Key) String() string {
	return strings.Join([]string{string(k.Source), k.Entity, k.Minute}, keySeparator)
}

// ParseKey reverses String. Entity names may not contain the separator.
func ParseKey(raw string) (Key, error) {
	parts := strings.Split(raw, keySeparator)
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("invalid ledger key %q", raw)
	}
	src := spawn.Source(parts[0])
	if src != spawn.SourceField && src != spawn.SourceWeekly {
		return Key{}, fmt.Errorf("invalid ledger key %q: unknown source %q", raw, parts[0])
	}
	if _, err := time.Parse(KeyMinuteLayout, parts[2]); err != nil {
		return Key{}, fmt.Errorf("invalid ledger key %q: %w", raw, err)
	}
	return Key{Source: src, Entity: parts[1], Minute: parts[2]}, nil
}
