package presence

import (
	"time"

	"github.com/p-blackswan/presence-tracker/internal/bucket"
)

// Prune deletes every hourly bucket outside the retention horizon from
// every record, bounding persisted size to horizonDays*24 buckets per
// record. Records themselves are never removed: a user whose history has
// fully expired keeps an empty Hourly map as an identity entry.
// Returns the number of buckets deleted.
func Prune(s *Store, horizonDays int, now time.Time) int {
	retained := bucket.RetainedIDs(now, horizonDays)
	deleted := 0
	for _, rec := range s.Records {
		for key := range rec.Hourly {
			if _, ok := retained[key]; !ok {
				delete(rec.Hourly, key)
				deleted++
			}
		}
	}
	return deleted
}
