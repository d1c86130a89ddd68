package availability

import (
	"fmt"
	"time"
)

// DefaultOffsetMinutes is the regional offset the shops run on (UTC-3). It is a
// fixed offset; daylight-saving transitions are not modelled.
const DefaultOffsetMinutes = -180

// Clock supplies "now". Filters never read the system clock directly.
type Clock interface {
	Now() time.Time
}

// FixedOffsetClock reports the current instant in a fixed regional offset.
type FixedOffsetClock struct {
	loc *time.Location
	now func() time.Time
}

func NewFixedOffsetClock(offsetMinutes int) *FixedOffsetClock {
	return &FixedOffsetClock{loc: FixedZone(offsetMinutes), now: time.Now}
}

func (c *FixedOffsetClock) Now() time.Time {
	return c.now().In(c.loc)
}

func (c *FixedOffsetClock) Location() *time.Location {
	return c.loc
}

// FixedZone builds a named zone like "UTC-03:00" for the given offset.
func FixedZone(offsetMinutes int) *time.Location {
	sign := "+"
	abs := offsetMinutes
	if abs < 0 {
		sign = "-"
		abs = -abs
	}
	return time.FixedZone(fmt.Sprintf("UTC%s%02d:%02d", sign, abs/60, abs%60), offsetMinutes*60)
}

// StaticClock always returns the same instant.
type StaticClock time.Time

func (c StaticClock) Now() time.Time { return time.Time(c) }
