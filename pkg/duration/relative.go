package duration

import "time"

// FormatRelative formats a time relative to now in a human-readable way.
func FormatRelative(t time.Time) string {
	return FormatRelativeFrom(t, time.Now())
}

// FormatRelativeFrom formats a time relative to the given anchor.
func FormatRelativeFrom(t time.Time, anchor time.Time) string {
	diff := t.Sub(anchor)

	if diff == 0 {
		return "now"
	}

	if diff < 0 {
		return Format(-diff) + " ago"
	}
	return "in " + Format(diff)
}
