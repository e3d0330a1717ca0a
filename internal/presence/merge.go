package presence

import (
	"time"

	"github.com/p-blackswan/presence-tracker/internal/bucket"
)

// Merge folds one snapshot into the store as a single sample per entity.
// It is deliberately not idempotent: each call represents one real
// observation, so merging the same snapshot twice records two samples.
// Returns the number of entities merged.
func Merge(s *Store, entities []Entity, now time.Time) int {
	if s.Records == nil {
		s.Records = make(map[string]*Record)
	}
	hour := bucket.HourID(now)
	merged := 0
	for _, e := range entities {
		if e.ID == "" {
			continue
		}
		rec, ok := s.Records[e.ID]
		if !ok {
			rec = &Record{
				ID:         e.ID,
				LastStatus: StatusOffline,
				Hourly:     make(map[string]*HourTally),
			}
			s.Records[e.ID] = rec
		}
		if rec.Hourly == nil {
			rec.Hourly = make(map[string]*HourTally)
		}

		// Identity and custom-status fields never regress to blank on a
		// transient empty read.
		setIfPresent(&rec.Name, e.Name)
		setIfPresent(&rec.Avatar, e.Avatar)
		setIfPresent(&rec.StatusText, e.StatusText)
		setIfPresent(&rec.StatusEmojiAlt, e.StatusEmojiAlt)
		setIfPresent(&rec.StatusEmoji, e.StatusEmoji)
		setIfPresent(&rec.StatusImageRef, e.StatusImageRef)

		status := NormalizeStatus(string(e.Status))
		rec.LastStatus = status
		if status == StatusActive {
			at := now
			rec.LastActiveAt = &at
		}

		tally, ok := rec.Hourly[hour]
		if !ok {
			tally = &HourTally{}
			rec.Hourly[hour] = tally
		}
		tally.Total++
		switch status {
		case StatusActive:
			tally.Active++
		case StatusAway:
			tally.Away++
		case StatusDND:
			tally.DND++
		}
		merged++
	}
	return merged
}

func setIfPresent(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
