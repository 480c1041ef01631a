package domain

import (
	"testing"
	"time"
)

func TestStaleProcessing(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		status ResumeStatus
		age    time.Duration
		after  time.Duration
		want   bool
	}{
		{"old processing", StatusProcessing, 5 * time.Minute, 2 * time.Minute, true},
		{"recent processing", StatusProcessing, time.Minute, 2 * time.Minute, false},
		{"exactly at threshold", StatusProcessing, 2 * time.Minute, 2 * time.Minute, false},
		{"old pending", StatusPending, time.Hour, 2 * time.Minute, false},
		{"old ready", StatusReady, time.Hour, 2 * time.Minute, false},
		{"disabled", StatusProcessing, time.Hour, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ResumeRecord{Status: tc.status, UpdatedAt: now.Add(-tc.age)}
			if got := rec.StaleProcessing(now, tc.after); got != tc.want {
				t.Fatalf("StaleProcessing() = %v, want %v", got, tc.want)
			}
		})
	}
}
