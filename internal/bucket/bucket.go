// Package bucket maps instants to canonical UTC hour buckets.
// All keys are derived in UTC so they stay stable regardless of the
// timezone the service or its viewers run in.
package bucket

import "time"

// hourIDFormat is RFC3339 with millisecond precision, matching the
// persisted key format. Keys sort lexically in chronological order.
const hourIDFormat = "2006-01-02T15:04:05.000Z"

// HourID returns the key of the UTC hour containing t. Any two instants
// within the same UTC hour map to the same key.
func HourID(t time.Time) string {
	return t.UTC().Truncate(time.Hour).Format(hourIDFormat)
}

// DayStart returns UTC midnight daysAgo whole days before now's UTC day.
// daysAgo = 0 is the start of the current UTC day.
func DayStart(now time.Time, daysAgo int) time.Time {
	u := now.UTC()
	midnight := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, -daysAgo)
}

// RetainedIDs returns the set of valid hour keys for a retention horizon:
// every hour in [DayStart(now, horizonDays-1), DayStart(now, 0)+24h).
// The result always has horizonDays*24 entries.
func RetainedIDs(now time.Time, horizonDays int) map[string]struct{} {
	if horizonDays < 1 {
		return map[string]struct{}{}
	}
	keys := make(map[string]struct{}, horizonDays*24)
	start := DayStart(now, horizonDays-1)
	for i := 0; i < horizonDays*24; i++ {
		keys[HourID(start.Add(time.Duration(i)*time.Hour))] = struct{}{}
	}
	return keys
}
