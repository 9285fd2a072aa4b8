package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDaily(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"later today", time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC), time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)},
		{"exactly at the hour", time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC), time.Date(2026, 10, 15, 18, 0, 0, 0, time.UTC)},
		{"after the hour", time.Date(2026, 10, 14, 19, 30, 0, 0, time.UTC), time.Date(2026, 10, 15, 18, 0, 0, 0, time.UTC)},
		{"month end", time.Date(2026, 10, 31, 20, 0, 0, 0, time.UTC), time.Date(2026, 11, 1, 18, 0, 0, 0, time.UTC)},
		{"non-UTC input", time.Date(2026, 10, 14, 22, 0, 0, 0, time.FixedZone("IST", 5*3600+1800)), time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextDaily(tt.now, 18, 0))
		})
	}
}

func TestNextWeekly(t *testing.T) {
	// 2026-10-14 is a Wednesday
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"midweek", time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC), time.Date(2026, 10, 18, 4, 30, 0, 0, time.UTC)},
		{"sunday before run", time.Date(2026, 10, 18, 4, 0, 0, 0, time.UTC), time.Date(2026, 10, 18, 4, 30, 0, 0, time.UTC)},
		{"sunday at run", time.Date(2026, 10, 18, 4, 30, 0, 0, time.UTC), time.Date(2026, 10, 25, 4, 30, 0, 0, time.UTC)},
		{"saturday night", time.Date(2026, 10, 24, 23, 59, 0, 0, time.UTC), time.Date(2026, 10, 25, 4, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextWeekly(tt.now, time.Sunday, 4, 30))
		})
	}
}
