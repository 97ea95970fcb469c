package scheduler

import (
	"testing"
	"time"
)

func TestUntilNextFire(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		at   time.Duration
		want time.Duration
	}{
		{
			name: "fire time later today",
			now:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			at:   30 * time.Minute,
			want: 30 * time.Minute,
		},
		{
			name: "fire time already passed rolls to tomorrow",
			now:  time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
			at:   30 * time.Minute,
			want: 23*time.Hour + 30*time.Minute,
		},
		{
			name: "exactly at fire time rolls to tomorrow",
			now:  time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC),
			at:   30 * time.Minute,
			want: 24 * time.Hour,
		},
		{
			name: "midnight fire time",
			now:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
			at:   0,
			want: 12 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := untilNextFire(tt.now, tt.at)
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
