package core

import "time"

// WeekStart returns the date of the most recent Sunday at or before t.
// It is the partition key for weekly budgets and the inclusive lower bound
// for "this week's" expenses.
func WeekStart(t time.Time) Date {
	return DateOf(t.AddDate(0, 0, -int(t.Weekday())))
}

// InWeek reports whether d counts toward the week starting at weekStart.
// There is no upper bound: an expense dated in the future still counts
// toward the current week.
func InWeek(d, weekStart Date) bool {
	return d >= weekStart
}
