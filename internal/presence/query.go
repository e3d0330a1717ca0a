package presence

import (
	"fmt"
	"time"

	"github.com/p-blackswan/presence-tracker/internal/bucket"
)

// Class is the display category derived from a bucket's tally.
type Class string

const (
	ClassActive   Class = "active"
	ClassAway     Class = "away"
	ClassDND      Class = "dnd"
	ClassInactive Class = "inactive"
)

// Classify maps a tally to its display class. The priority order
// active > dnd > away is fixed: an hour with both active and away samples
// displays as active. A nil tally is inactive.
func Classify(t *HourTally, threshold int) Class {
	if t == nil {
		return ClassInactive
	}
	switch {
	case t.Active >= threshold:
		return ClassActive
	case t.DND >= threshold:
		return ClassDND
	case t.Away >= threshold:
		return ClassAway
	default:
		return ClassInactive
	}
}

// RollingWindow returns one class per hour for the last windowHours hours,
// oldest first, ending with the hour containing now.
func RollingWindow(rec *Record, windowHours int, now time.Time, threshold int) []Class {
	classes := make([]Class, 0, windowHours)
	for k := windowHours - 1; k >= 0; k-- {
		hour := bucket.HourID(now.Add(-time.Duration(k) * time.Hour))
		classes = append(classes, Classify(tallyAt(rec, hour), threshold))
	}
	return classes
}

// HeatmapGrid returns a horizonDays x 24 grid of classes. Row 0 is the
// current UTC day, row d covers the day d days ago; column h is hour-of-day
// h of that row's day. The shape is exact regardless of how sparse the
// record's history is.
func HeatmapGrid(rec *Record, horizonDays int, now time.Time, threshold int) [][]Class {
	grid := make([][]Class, horizonDays)
	for d := 0; d < horizonDays; d++ {
		day := bucket.DayStart(now, d)
		row := make([]Class, 24)
		for h := 0; h < 24; h++ {
			hour := bucket.HourID(day.Add(time.Duration(h) * time.Hour))
			row[h] = Classify(tallyAt(rec, hour), threshold)
		}
		grid[d] = row
	}
	return grid
}

func tallyAt(rec *Record, hour string) *HourTally {
	if rec == nil || rec.Hourly == nil {
		return nil
	}
	return rec.Hourly[hour]
}

// TimeSince humanizes the duration between t and now. A nil t yields the
// "never" sentinel.
func TimeSince(t *time.Time, now time.Time) string {
	if t == nil {
		return "never"
	}
	d := now.Sub(*t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d h", int(d.Hours()))
	default:
		return fmt.Sprintf("%d d", int(d.Hours()/24))
	}
}
