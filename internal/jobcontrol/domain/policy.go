package domain

import "time"

// ShouldRun decides from the persisted row and the wall clock whether a job
// is due. It is pure; the caller stamps last_check on every evaluation and
// last_execute only after the job completes.
func ShouldRun(jc JobControl, now time.Time) bool {
	switch jc.IntervalHours {
	case IntervalHourly:
		return shouldRunHourly(jc, now)
	case IntervalDaily:
		return shouldRunDaily(jc, now)
	case IntervalMonthly:
		return shouldRunMonthly(jc, now)
	default:
		return false
	}
}

func shouldRunHourly(jc JobControl, now time.Time) bool {
	if jc.LastExecute == nil {
		return true
	}
	due := jc.LastExecute.Add(time.Duration(jc.IntervalHours) * time.Hour)
	return !now.Before(due)
}

func shouldRunDaily(jc JobControl, now time.Time) bool {
	if jc.AnchorHour == nil {
		return false
	}
	if now.Hour() < *jc.AnchorHour {
		return false
	}
	if jc.LastExecute == nil {
		return true
	}
	return dateOf(*jc.LastExecute).Before(dateOf(now))
}

func shouldRunMonthly(jc JobControl, now time.Time) bool {
	if jc.AnchorDay == nil || jc.AnchorHour == nil {
		return false
	}
	if ranThisMonth(jc, now) {
		return false
	}
	switch {
	case now.Day() == *jc.AnchorDay:
		return now.Hour() >= *jc.AnchorHour
	case now.Day() > *jc.AnchorDay:
		// Weekly retry window for a missed monthly run.
		return now.Weekday() == time.Monday
	default:
		return false
	}
}

func ranThisMonth(jc JobControl, now time.Time) bool {
	if jc.LastExecute == nil {
		return false
	}
	last := jc.LastExecute.UTC()
	return last.Year() == now.Year() && last.Month() == now.Month()
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
