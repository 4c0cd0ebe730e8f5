package service

import (
	"testing"
	"time"
)

func TestWithinWindow(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	thirty := 30

	tests := []struct {
		name            string
		durationMinutes *int
		now             time.Time
		want            bool
	}{
		{"untimed long after start", nil, start.Add(1000 * time.Hour), true},
		{"well inside window", &thirty, start.Add(10 * time.Minute), true},
		{"exactly at deadline", &thirty, start.Add(30 * time.Minute), true},
		{"one second late", &thirty, start.Add(30*time.Minute + time.Second), false},
		{"one nanosecond late", &thirty, start.Add(30*time.Minute + time.Nanosecond), false},
		{"at start", &thirty, start, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := withinWindow(start, tt.durationMinutes, tt.now); got != tt.want {
				t.Errorf("withinWindow() = %v, want %v", got, tt.want)
			}
		})
	}
}
