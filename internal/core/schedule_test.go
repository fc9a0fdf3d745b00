package core

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextExecution(t *testing.T) {
	tests := []struct {
		name     string
		in       time.Time
		schedule ScheduleType
		want     time.Time
	}{
		{
			name:     "daily advances one day",
			in:       date(2025, time.January, 10),
			schedule: Daily,
			want:     date(2025, time.January, 11),
		},
		{
			name:     "daily across month boundary",
			in:       date(2025, time.January, 31),
			schedule: Daily,
			want:     date(2025, time.February, 1),
		},
		{
			name:     "weekly advances seven days",
			in:       date(2025, time.January, 28),
			schedule: Weekly,
			want:     date(2025, time.February, 4),
		},
		{
			name:     "monthly mid-month",
			in:       date(2025, time.March, 15),
			schedule: Monthly,
			want:     date(2025, time.April, 15),
		},
		{
			name:     "monthly from Jan 31 clamps to Feb 28",
			in:       date(2025, time.January, 31),
			schedule: Monthly,
			want:     date(2025, time.February, 28),
		},
		{
			name:     "monthly from Jan 31 clamps to Feb 29 in leap year",
			in:       date(2024, time.January, 31),
			schedule: Monthly,
			want:     date(2024, time.February, 29),
		},
		{
			name:     "monthly from Mar 31 clamps to Apr 30",
			in:       date(2025, time.March, 31),
			schedule: Monthly,
			want:     date(2025, time.April, 30),
		},
		{
			name:     "monthly across year boundary",
			in:       date(2025, time.December, 31),
			schedule: Monthly,
			want:     date(2026, time.January, 31),
		},
		{
			name:     "yearly advances one year",
			in:       date(2025, time.June, 1),
			schedule: Yearly,
			want:     date(2026, time.June, 1),
		},
		{
			name:     "yearly from leap day clamps to Feb 28",
			in:       date(2024, time.February, 29),
			schedule: Yearly,
			want:     date(2025, time.February, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextExecution(tt.in, tt.schedule)
			if !got.Equal(tt.want) {
				t.Errorf("NextExecution(%v, %s) = %v, want %v", tt.in, tt.schedule, got, tt.want)
			}
		})
	}
}

// Every valid schedule must strictly advance the date: the due query uses
// <=, so a non-advancing schedule would re-materialize forever.
func TestNextExecution_AlwaysAdvances(t *testing.T) {
	schedules := []ScheduleType{Daily, Weekly, Monthly, Yearly}
	dates := []time.Time{
		date(2024, time.February, 29),
		date(2025, time.January, 1),
		date(2025, time.January, 31),
		date(2025, time.December, 31),
	}
	for _, s := range schedules {
		for _, d := range dates {
			if got := NextExecution(d, s); !got.After(d) {
				t.Errorf("NextExecution(%v, %s) = %v, not after input", d, s, got)
			}
		}
	}
}

func TestNextExecution_UnknownSchedule(t *testing.T) {
	if got := NextExecution(date(2025, time.January, 1), ScheduleType("HOURLY")); !got.IsZero() {
		t.Errorf("expected zero time for unknown schedule, got %v", got)
	}
}
