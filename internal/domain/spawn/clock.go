package spawn

import "time"

// Clock supplies the current time in the single zone all computations use.
type Clock interface {
	Now() time.Time
}

type ZoneClock struct {
	loc *time.Location
}

func NewZoneClock(loc *time.Location) ZoneClock {
	if loc == nil {
		loc = time.Local
	}
	return ZoneClock{loc: loc}
}

func (c ZoneClock) Now() time.Time { return time.Now().In(c.loc) }
