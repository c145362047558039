package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkingDays(t *testing.T) {
	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	tests := []struct {
		name string
		from time.Time
		to   time.Time
		loc  *time.Location
		want int
	}{
		{"monday to friday", date(2025, 3, 3), date(2025, 3, 7), time.UTC, 5},
		{"single weekday", date(2025, 3, 4), date(2025, 3, 4), time.UTC, 1},
		{"weekend only", date(2025, 3, 8), date(2025, 3, 9), time.UTC, 0},
		{"two full weeks", date(2025, 3, 3), date(2025, 3, 16), time.UTC, 10},
		{"end time within the last day counts it", date(2025, 3, 3), date(2025, 3, 5).Add(23 * time.Hour), time.UTC, 3},
		{"inverted range is empty", date(2025, 3, 7), date(2025, 3, 3), time.UTC, 0},
		// 02:00 UTC on Saturday is still Friday in Sao Paulo.
		{"dates follow the configured zone", date(2025, 3, 8).Add(2 * time.Hour), date(2025, 3, 8).Add(2 * time.Hour), saoPaulo, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WorkingDays(tt.from, tt.to, tt.loc))
		})
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
