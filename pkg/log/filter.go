package log

import "time"

// Filter selects events. Every set field must match; the zero Filter
// matches everything.
type Filter struct {
	ConnectionID string
	Direction    *Direction
	Layer        *Layer
	Category     *Category
	Interface    *Interface
	Filename     string

	// TimeStart and TimeEnd bound the timestamp to [TimeStart, TimeEnd).
	TimeStart *time.Time
	TimeEnd   *time.Time
}

// Match reports whether event passes the filter.
func (f Filter) Match(event Event) bool {
	switch {
	case f.ConnectionID != "" && f.ConnectionID != event.ConnectionID,
		f.Filename != "" && f.Filename != event.Filename,
		!eq(f.Direction, event.Direction),
		!eq(f.Layer, event.Layer),
		!eq(f.Category, event.Category),
		!eq(f.Interface, event.Interface),
		f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart),
		f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	}
	return true
}

// eq reports whether want is unset or equal to v.
func eq[T comparable](want *T, v T) bool {
	return want == nil || *want == v
}
