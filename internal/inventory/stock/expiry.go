// Package stock implements the batch selection and stock-merge core:
// expiry classification, FEFO allocation, batch grouping and the
// weighted-average merge computation. All functions are pure and take
// an explicit reference date so callers and tests control "today".
package stock

import "time"

// StartOfDay truncates t to midnight in its own location. Expiry
// comparisons are calendar-date comparisons; the hour of day must not
// influence whether a batch counts as expired.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// IsExpired reports whether a batch with the given expiry date is
// expired as of the reference date. A nil expiry never expires.
func IsExpired(expiry *time.Time, today time.Time) bool {
	if expiry == nil {
		return false
	}
	return StartOfDay(*expiry).Before(StartOfDay(today))
}

// DaysUntilExpiry returns the number of whole days from the reference
// date until the expiry date, rounded up. Negative for past dates,
// zero when the expiry date is today.
func DaysUntilExpiry(expiry time.Time, today time.Time) int {
	diff := StartOfDay(expiry).Sub(StartOfDay(today))
	days := int(diff.Hours() / 24)
	if diff%(24*time.Hour) != 0 && diff > 0 {
		days++
	}
	return days
}

// IsExpiringWithinDays reports whether the batch expires within the
// given number of days from the reference date. A nil expiry never
// counts as expiring, and neither does an already-expired batch:
// IsExpired and IsExpiringWithinDays are mutually exclusive.
func IsExpiringWithinDays(expiry *time.Time, days int, today time.Time) bool {
	if expiry == nil {
		return false
	}
	until := DaysUntilExpiry(*expiry, today)
	return until >= 0 && until <= days
}
