package money

import "time"

// GraceDeadline is the last instant a fee can be settled without being overdue.
func GraceDeadline(due time.Time, graceDays int) time.Time {
	return due.AddDate(0, 0, graceDays)
}

// OverdueAt reports whether an unpaid fee due at `due` is overdue at `now`,
// given a grace period in days.
func OverdueAt(now, due time.Time, graceDays int) bool {
	return now.After(GraceDeadline(due, graceDays))
}

// DueWithin reports whether `due` falls inside the look-ahead window starting
// at `now`. Already-past due dates are not "due within" - they are overdue or
// in grace.
func DueWithin(now, due time.Time, window time.Duration) bool {
	if due.Before(now) {
		return false
	}
	return !due.After(now.Add(window))
}

// BeforeDeadline reports whether `now` is strictly before `deadline`.
// Early-payment discounts only apply strictly before the deadline.
func BeforeDeadline(now, deadline time.Time) bool {
	return now.Before(deadline)
}
