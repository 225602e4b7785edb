package scheduler

import (
	"testing"
	"time"
)

func TestNextHourBoundary(t *testing.T) {
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{
			time.Date(2024, 3, 13, 9, 30, 0, 0, time.UTC),
			time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC),
		},
		{
			// Exactly on the hour still moves forward.
			time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC),
		},
		{
			time.Date(2024, 3, 13, 23, 59, 59, 0, time.UTC),
			time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		if got := nextHourBoundary(tc.now); !got.Equal(tc.want) {
			t.Errorf("nextHourBoundary(%v) = %v, want %v", tc.now, got, tc.want)
		}
	}
}

func TestNextDailyBoundary(t *testing.T) {
	cases := []struct {
		now  time.Time
		hour int
		want time.Time
	}{
		{
			// Before today's slot.
			time.Date(2024, 3, 13, 6, 0, 0, 0, time.UTC),
			8,
			time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC),
		},
		{
			// After today's slot rolls to tomorrow.
			time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC),
			8,
			time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC),
		},
		{
			// Exactly at the slot rolls to tomorrow.
			time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC),
			8,
			time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC),
		},
		{
			// Midnight slot.
			time.Date(2024, 3, 13, 0, 0, 1, 0, time.UTC),
			0,
			time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		if got := nextDailyBoundary(tc.now, tc.hour); !got.Equal(tc.want) {
			t.Errorf("nextDailyBoundary(%v, %d) = %v, want %v", tc.now, tc.hour, got, tc.want)
		}
	}
}
