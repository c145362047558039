package service

import "time"

// WorkingDays counts Monday to Friday calendar dates touched by [from, to],
// both ends inclusive, with dates taken in loc.
func WorkingDays(from, to time.Time, loc *time.Location) int {
	start := dateOf(from.In(loc))
	end := dateOf(to.In(loc))
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
