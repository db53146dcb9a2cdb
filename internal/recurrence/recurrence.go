// Package recurrence computes the next occurrence of a scheduled task.
//
// All arithmetic is calendar-aware and timezone-consistent: callers pass
// UTC timestamps and get UTC timestamps back. The scheduler never mixes
// naive and zoned times.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"printdesk/internal/model"
)

// ErrEmptyWeekdaySet is returned for a custom recurrence with no weekdays.
// The naive advance loop would never terminate on such input, so it is
// rejected up front instead.
var ErrEmptyWeekdaySet = errors.New("recurrence: custom kind with empty weekday set")

// Next returns the occurrence following t for the given kind.
//
// days is only consulted for model.RecurCustom. For model.RecurNone the
// input is returned unchanged: one-shot tasks are removed after firing,
// never advanced.
func Next(t time.Time, kind model.RecurrenceKind, days []time.Weekday) (time.Time, error) {
	switch kind {
	case model.RecurNone:
		return t, nil
	case model.RecurDaily:
		return t.Add(24 * time.Hour), nil
	case model.RecurWeekly:
		return t.Add(7 * 24 * time.Hour), nil
	case model.RecurMonthly:
		return addMonthClamped(t), nil
	case model.RecurFirstDayMonth:
		return firstOfNextMonth(t), nil
	case model.RecurEveryWeekday:
		next := t
		for {
			next = next.Add(24 * time.Hour)
			if wd := next.Weekday(); wd != time.Saturday && wd != time.Sunday {
				return next, nil
			}
		}
	case model.RecurCustom:
		if len(days) == 0 {
			return time.Time{}, ErrEmptyWeekdaySet
		}
		member := map[time.Weekday]bool{}
		for _, d := range days {
			member[d] = true
		}
		next := t
		for {
			next = next.Add(24 * time.Hour)
			if member[next.Weekday()] {
				return next, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("recurrence: unknown kind %q", kind)
}

// addMonthClamped advances one calendar month, clamping the day-of-month
// to the last valid day of the target month (Jan 31 -> Feb 28/29). Plain
// AddDate would normalize Jan 31 into early March.
func addMonthClamped(t time.Time) time.Time {
	y, m, d := t.Date()
	ty, tm := norm(y, m+1)
	if last := daysIn(ty, tm); d > last {
		d = last
	}
	return time.Date(ty, tm, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// firstOfNextMonth returns day 1 of the following month at the same
// wall-clock time, regardless of the input day-of-month.
func firstOfNextMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	ty, tm := norm(y, m+1)
	return time.Date(ty, tm, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func norm(y int, m time.Month) (int, time.Month) {
	if m > time.December {
		return y + 1, time.January
	}
	return y, m
}

// daysIn returns the number of days in the given month.
// Day 0 of month+1 normalizes to the last day of month.
func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
