package presence

import "time"

// Filter selects which users a listing shows.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterActive   Filter = "active"
	FilterInactive Filter = "inactive"
	FilterVacation Filter = "vacation"
)

// ValidFilter reports whether f is a known filter value.
func ValidFilter(f Filter) bool {
	switch f {
	case FilterAll, FilterActive, FilterInactive, FilterVacation:
		return true
	}
	return false
}

// Preferences is the small persisted configuration record. Persisted
// overrides are merged onto defaults field-by-field: a zero value in the
// stored copy falls back to the default rather than disabling anything.
type Preferences struct {
	SampleInterval  time.Duration `json:"sampleInterval"`
	HorizonDays     int           `json:"horizonDays"`
	ActiveThreshold int           `json:"activeThreshold"`
	Filter          Filter        `json:"filter"`
}

// DefaultPreferences returns the shipped defaults: sample every minute,
// keep ten days, one sample marks an hour, show everyone.
func DefaultPreferences() Preferences {
	return Preferences{
		SampleInterval:  60 * time.Second,
		HorizonDays:     10,
		ActiveThreshold: 1,
		Filter:          FilterAll,
	}
}

// MergePrefs overlays stored onto base, keeping base wherever stored has
// a zero or invalid value.
func MergePrefs(base, stored Preferences) Preferences {
	out := base
	if stored.SampleInterval > 0 {
		out.SampleInterval = stored.SampleInterval
	}
	if stored.HorizonDays > 0 {
		out.HorizonDays = stored.HorizonDays
	}
	if stored.ActiveThreshold > 0 {
		out.ActiveThreshold = stored.ActiveThreshold
	}
	if ValidFilter(stored.Filter) {
		out.Filter = stored.Filter
	}
	return out
}
