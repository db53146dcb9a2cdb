package recurrence

import (
	"errors"
	"testing"
	"time"

	"printdesk/internal/model"
)

func utc(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestNextAlwaysStrictlyAfter(t *testing.T) {
	start := utc(2024, time.March, 14, 9, 30)
	kinds := []model.RecurrenceKind{
		model.RecurDaily,
		model.RecurWeekly,
		model.RecurMonthly,
		model.RecurEveryWeekday,
		model.RecurFirstDayMonth,
	}
	for _, k := range kinds {
		got, err := Next(start, k, nil)
		if err != nil {
			t.Fatalf("%s: %v", k, err)
		}
		if !got.After(start) {
			t.Errorf("%s: next %v not after %v", k, got, start)
		}
	}

	got, err := Next(start, model.RecurCustom, []time.Weekday{time.Monday})
	if err != nil {
		t.Fatalf("custom: %v", err)
	}
	if !got.After(start) {
		t.Errorf("custom: next %v not after %v", got, start)
	}
}

func TestDailyAndWeekly(t *testing.T) {
	start := utc(2024, time.January, 1, 9, 0)

	got, _ := Next(start, model.RecurDaily, nil)
	if want := utc(2024, time.January, 2, 9, 0); !got.Equal(want) {
		t.Errorf("daily: got %v, want %v", got, want)
	}

	got, _ = Next(start, model.RecurWeekly, nil)
	if want := utc(2024, time.January, 8, 9, 0); !got.Equal(want) {
		t.Errorf("weekly: got %v, want %v", got, want)
	}
}

func TestEveryWeekdaySkipsWeekend(t *testing.T) {
	cases := []struct {
		name  string
		start time.Time
		want  time.Time
	}{
		// 2024-01-05 is a Friday; the next weekday is Monday the 8th.
		{"friday", utc(2024, time.January, 5, 17, 0), utc(2024, time.January, 8, 17, 0)},
		{"saturday", utc(2024, time.January, 6, 17, 0), utc(2024, time.January, 8, 17, 0)},
		{"midweek", utc(2024, time.January, 3, 8, 15), utc(2024, time.January, 4, 8, 15)},
	}
	for _, tc := range cases {
		got, err := Next(tc.start, model.RecurEveryWeekday, nil)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if !got.Equal(tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFirstDayOfMonth(t *testing.T) {
	cases := []struct {
		start time.Time
		want  time.Time
	}{
		{utc(2024, time.January, 1, 7, 0), utc(2024, time.February, 1, 7, 0)},
		{utc(2024, time.January, 31, 7, 0), utc(2024, time.February, 1, 7, 0)},
		{utc(2024, time.December, 15, 7, 0), utc(2025, time.January, 1, 7, 0)},
	}
	for _, tc := range cases {
		got, err := Next(tc.start, model.RecurFirstDayMonth, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Equal(tc.want) {
			t.Errorf("from %v: got %v, want %v", tc.start, got, tc.want)
		}
	}
}

func TestMonthlyClampsDayOverflow(t *testing.T) {
	cases := []struct {
		start time.Time
		want  time.Time
	}{
		// Jan 31 -> Feb 29 in a leap year, Feb 28 otherwise.
		{utc(2024, time.January, 31, 9, 0), utc(2024, time.February, 29, 9, 0)},
		{utc(2023, time.January, 31, 9, 0), utc(2023, time.February, 28, 9, 0)},
		{utc(2024, time.March, 31, 9, 0), utc(2024, time.April, 30, 9, 0)},
		{utc(2024, time.June, 15, 9, 0), utc(2024, time.July, 15, 9, 0)},
		{utc(2024, time.December, 31, 9, 0), utc(2025, time.January, 31, 9, 0)},
	}
	for _, tc := range cases {
		got, err := Next(tc.start, model.RecurMonthly, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Equal(tc.want) {
			t.Errorf("from %v: got %v, want %v", tc.start, got, tc.want)
		}
	}
}

func TestCustomWeekdays(t *testing.T) {
	// 2024-01-02 is a Tuesday.
	start := utc(2024, time.January, 2, 12, 0)

	got, err := Next(start, model.RecurCustom, []time.Weekday{time.Thursday})
	if err != nil {
		t.Fatal(err)
	}
	if want := utc(2024, time.January, 4, 12, 0); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Starting on a member day still advances at least one day.
	got, err = Next(start, model.RecurCustom, []time.Weekday{time.Tuesday})
	if err != nil {
		t.Fatal(err)
	}
	if want := utc(2024, time.January, 9, 12, 0); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCustomEmptySetFailsFast(t *testing.T) {
	_, err := Next(utc(2024, time.January, 2, 12, 0), model.RecurCustom, nil)
	if !errors.Is(err, ErrEmptyWeekdaySet) {
		t.Fatalf("expected ErrEmptyWeekdaySet, got %v", err)
	}
}

func TestNoneIsIdentity(t *testing.T) {
	start := utc(2024, time.May, 5, 5, 5)
	got, err := Next(start, model.RecurNone, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(start) {
		t.Errorf("got %v, want identity %v", got, start)
	}
}

func TestUnknownKindRejected(t *testing.T) {
	if _, err := Next(time.Now(), model.RecurrenceKind("fortnightly"), nil); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
