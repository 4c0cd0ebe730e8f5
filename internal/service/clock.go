package service

import "time"

// withinWindow reports whether a submission at the given instant is still
// inside the attempt's allowed window. A nil duration means the assessment is
// untimed and the window never closes. A submission landing exactly on the
// deadline is on time.
func withinWindow(startedAt time.Time, durationMinutes *int, now time.Time) bool {
	if durationMinutes == nil {
		return true
	}
	deadline := startedAt.Add(time.Duration(*durationMinutes) * time.Minute)
	return !now.After(deadline)
}
