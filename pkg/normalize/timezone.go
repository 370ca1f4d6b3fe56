package normalize

import (
	"time"
)

// CorrectTimezone applies §4.A's post-source-match timezone correction: if
// the system has an IANA tz name, the UTC offset of both the system's tz
// and the collector's tz (default UTC) is computed at the event instant
// (so DST is handled correctly) and the delta subtracted. Otherwise, a
// fixed tzOffsetMinutes is subtracted if present. The correction only
// touches the parsed timestamp; received-at stays at wall clock.
func CorrectTimezone(ts time.Time, systemTZName string, systemTZOffsetMinutes *int, collectorTZName string) time.Time {
	if systemTZName != "" {
		loc, err := time.LoadLocation(systemTZName)
		if err != nil {
			return ts
		}
		collectorLoc := time.UTC
		if collectorTZName != "" {
			if l, err := time.LoadLocation(collectorTZName); err == nil {
				collectorLoc = l
			}
		}
		_, systemOffsetSec := ts.In(loc).Zone()
		_, collectorOffsetSec := ts.In(collectorLoc).Zone()
		delta := time.Duration(systemOffsetSec-collectorOffsetSec) * time.Second
		return ts.Add(-delta)
	}

	if systemTZOffsetMinutes != nil {
		return ts.Add(-time.Duration(*systemTZOffsetMinutes) * time.Minute)
	}

	return ts
}
