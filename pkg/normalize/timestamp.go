package normalize

import (
	"strconv"
	"strings"
	"time"
)

// Epoch-magnitude thresholds for unit detection (§4.A, §8).
const (
	thresholdMilli = 1e12
	thresholdMicro = 1e15
	thresholdNano  = 1e18
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05.000 MST",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"Jan _2 15:04:05",
	"Jan  2 15:04:05",
}

// resolveTimestamp implements §4.A's timestamp resolution: first non-empty
// of timestamp/time/@timestamp, numbers interpreted as epoch by magnitude,
// strings parsed against a layout table, parse failures fall back to now.
// Output is always UTC.
func resolveTimestamp(raw map[string]interface{}, now time.Time) time.Time {
	for _, key := range []string{"timestamp", "time", "@timestamp"} {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			if t == 0 {
				continue
			}
			return epochToTime(t).UTC()
		case int64:
			if t == 0 {
				continue
			}
			return epochToTime(float64(t)).UTC()
		case int:
			if t == 0 {
				continue
			}
			return epochToTime(float64(t)).UTC()
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				continue
			}
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				return epochToTime(n).UTC()
			}
			if ts, ok := parseTimestampString(s); ok {
				return ts.UTC()
			}
			return now.UTC()
		}
	}
	return now.UTC()
}

// epochToTime interprets a numeric epoch value by magnitude: seconds,
// milliseconds, microseconds, or nanoseconds (§4.A, §8).
func epochToTime(v float64) time.Time {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= thresholdNano:
		return time.Unix(0, int64(v))
	case abs >= thresholdMicro:
		return time.UnixMicro(int64(v))
	case abs >= thresholdMilli:
		return time.UnixMilli(int64(v))
	default:
		sec := int64(v)
		nsec := int64((v - float64(sec)) * 1e9)
		return time.Unix(sec, nsec)
	}
}

func parseTimestampString(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ApplyFutureGuard clamps a timestamp to now when it exceeds now+maxDrift,
// reporting whether it clamped (§4.A, §8).
func ApplyFutureGuard(ts, now time.Time, maxDriftSeconds int) (time.Time, bool) {
	limit := now.Add(time.Duration(maxDriftSeconds) * time.Second)
	if ts.After(limit) {
		return now, true
	}
	return ts, false
}
