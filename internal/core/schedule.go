package core

import "time"

// NextExecution computes the occurrence following d for the given schedule.
// It is pure and has no error path: the schedule type is validated before a
// rule ever reaches the engine.
//
// Month and year steps clamp to the last valid day of the target month, so a
// MONTHLY rule anchored on Jan 31 lands on Feb 28 (Feb 29 in leap years).
// This deliberately does NOT use time.AddDate for those steps: AddDate
// normalizes overflow (Jan 31 + 1 month = Mar 2/3), which would silently
// drift month-end rules forward.
//
// A ScheduleType outside the four known values returns the zero time.
func NextExecution(d time.Time, s ScheduleType) time.Time {
	switch s {
	case Daily:
		return d.AddDate(0, 0, 1)
	case Weekly:
		return d.AddDate(0, 0, 7)
	case Monthly:
		return addMonthsClamped(d, 1)
	case Yearly:
		return addMonthsClamped(d, 12)
	default:
		return time.Time{}
	}
}

// addMonthsClamped advances d by the given number of months, clamping the day
// of month to the last valid day of the target month.
func addMonthsClamped(d time.Time, months int) time.Time {
	first := time.Date(d.Year(), d.Month()+time.Month(months), 1, 0, 0, 0, 0, d.Location())
	day := d.Day()
	if last := lastDayOfMonth(first); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
