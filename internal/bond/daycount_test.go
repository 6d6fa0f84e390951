package bond

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDays360US(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{"same day", Date(2024, 3, 22), Date(2024, 3, 22), 0},
		{"whole month", Date(2024, 1, 15), Date(2024, 2, 15), 30},
		{"half year", Date(2024, 3, 22), Date(2024, 9, 22), 180},
		{"start 31st", Date(2024, 3, 31), Date(2024, 4, 15), 15},
		{"both 31st", Date(2024, 3, 31), Date(2024, 5, 31), 60},
		{"end 31st start 15th", Date(2024, 3, 15), Date(2024, 3, 31), 16},
		{"start end of february", Date(2023, 2, 28), Date(2023, 3, 31), 30},
		{"february to february", Date(2024, 2, 29), Date(2025, 2, 28), 360},
		{"leap february start", Date(2024, 2, 29), Date(2024, 3, 15), 15},
		{"across years", Date(2023, 12, 15), Date(2024, 1, 10), 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Days360US(tt.start, tt.end))
		})
	}
}

func TestActualDays(t *testing.T) {
	assert.Equal(t, 366, ActualDays(Date(2024, 1, 1), Date(2025, 1, 1)))
	assert.Equal(t, 0, ActualDays(Date(2024, 1, 1), Date(2024, 1, 1)))
	assert.InDelta(t, 1.0, YearsAct365(Date(2023, 1, 1), Date(2024, 1, 1)), 1e-12)
}

func TestAccrualMonotoneWithinWindow(t *testing.T) {
	last := Date(2024, 3, 31)
	next := Date(2024, 9, 30)

	prev := -1
	for s := last; s.Before(next); s = s.AddDate(0, 0, 1) {
		d := Days360US(last, s)
		assert.GreaterOrEqual(t, d, prev, "settlement %s", s.Format("2006-01-02"))
		prev = d
	}
}
