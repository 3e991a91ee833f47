package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToStandard(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0/5 * * * ? *", "0/5 * * * ?"},
		{"0 12 * * ? *", "0 12 * * ?"},
		{"15 10 ? * 2-6 *", "15 10 ? * 1-5"},
		{"0 8 ? * MON-FRI *", "0 8 ? * MON-FRI"},
		{"0 8 ? JUL WED *", "0 8 ? JUL WED"},
		{"0 8 ? * 1,7 *", "0 8 ? * 0,6"},
		{"0 0 1 * ? *", "0 0 1 * ?"},
	}

	for _, tt := range tests {
		got, err := ToStandard(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.expected, got, tt.input)
	}
}

func TestToStandard_Errors(t *testing.T) {
	unsupported := []string{
		"0 0 L * ? *",
		"0 0 ? * 6#3 *",
		"0 0 1W * ? *",
		"0 0 * * ? 2027",
	}
	for _, input := range unsupported {
		_, err := ToStandard(input)
		assert.True(t, errors.Is(err, ErrUnsupportedExpression), input)
	}

	invalid := []string{
		"0/5 * * * *",
		"0 0 1 * 1 *",
		"0 0 ? * 8 *",
	}
	for _, input := range invalid {
		_, err := ToStandard(input)
		assert.Error(t, err, input)
		assert.False(t, errors.Is(err, ErrUnsupportedExpression), input)
	}
}

func TestNext_EveryFiveMinutes(t *testing.T) {
	from := time.Date(2026, 10, 17, 9, 2, 30, 0, time.UTC)

	times, err := Next("cron(0/5 * * * ? *)", from, 4)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"2026-10-17T09:05:00Z",
		"2026-10-17T09:10:00Z",
		"2026-10-17T09:15:00Z",
		"2026-10-17T09:20:00Z",
	}, formatAll(times))
}

func TestNext_ConvertsToUTC(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*60*60)
	from := time.Date(2026, 10, 17, 23, 58, 0, 0, zone) // 21:58 UTC

	times, err := Next("0 22 * * ? *", from, 1)
	require.NoError(t, err)
	require.Len(t, times, 1)
	assert.Equal(t, "2026-10-17T22:00:00Z", times[0].Format(time.RFC3339))
}

func TestNext_DayOfWeek(t *testing.T) {
	// 2026-10-17 is a Saturday; 2 is Monday in EventBridge numbering
	from := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

	times, err := Next("0 9 ? * 2 *", from, 2)
	require.NoError(t, err)
	require.Len(t, times, 2)
	assert.Equal(t, time.Monday, times[0].Weekday())
	assert.Equal(t, []string{"2026-10-19T09:00:00Z", "2026-10-26T09:00:00Z"}, formatAll(times))
}

func TestNext_Count(t *testing.T) {
	from := time.Date(2026, 10, 17, 9, 2, 30, 0, time.UTC)

	times, err := Next("0/5 * * * ? *", from, 0)
	require.NoError(t, err)
	assert.Empty(t, times)

	_, err = Next("0/5 * * * ? *", from, -1)
	assert.ErrorContains(t, err, "must not be negative")
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("cron(61 * * * ? *)")
	assert.Error(t, err)
}

func formatAll(times []time.Time) []string {
	out := make([]string, len(times))
	for i, ts := range times {
		out[i] = ts.Format(time.RFC3339)
	}
	return out
}
