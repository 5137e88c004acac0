package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleNext(t *testing.T) {
	base := time.Date(2026, 10, 19, 10, 7, 30, 0, time.UTC) // Monday

	cases := []struct {
		expr string
		want time.Time
	}{
		{"* * * * *", time.Date(2026, 10, 19, 10, 8, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 10, 19, 10, 15, 0, 0, time.UTC)},
		{"0 3 * * *", time.Date(2026, 10, 20, 3, 0, 0, 0, time.UTC)},
		{"30 9-17/4 * * *", time.Date(2026, 10, 19, 13, 30, 0, 0, time.UTC)},
		{"0 0 1 * *", time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)},
		{"0 12 * * 0,6", time.Date(2026, 10, 24, 12, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			s, err := ParseSchedule(tc.expr)
			require.NoError(t, err)
			got, err := s.Next(base)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseScheduleRejects(t *testing.T) {
	for _, expr := range []string{"", "* * * *", "61 * * * *", "a * * * *", "*/0 * * * *", "5-2 * * * *", "0 0 0 * *"} {
		_, err := ParseSchedule(expr)
		assert.Error(t, err, expr)
	}
}

func TestScheduleNeverFires(t *testing.T) {
	s, err := ParseSchedule("0 0 31 2 *")
	require.NoError(t, err)
	_, err = s.Next(time.Now())
	assert.Error(t, err)
}
