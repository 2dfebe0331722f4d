package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCandle_MinuteBucket(t *testing.T) {
	tests := []struct {
		name     string
		ts       int64
		expected int64
	}{
		{"exact minute", time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC).UnixNano(), time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC).Unix()},
		{"last nanosecond of minute", time.Date(2024, 3, 1, 14, 30, 59, 999999999, time.UTC).UnixNano(), time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC).Unix()},
		{"mid minute", time.Date(2024, 3, 1, 14, 31, 12, 5, time.UTC).UnixNano(), time.Date(2024, 3, 1, 14, 31, 0, 0, time.UTC).Unix()},
		{"zero", 0, 0},
		{"negative floors down", -1, -60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MinuteBucket(tt.ts))
		})
	}
}

func TestTick_MinuteOfDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("timezone database not available")
	}

	ts := time.Date(2024, 3, 1, 9, 31, 15, 0, ny).UnixNano()
	assert.Equal(t, int16(571), MinuteOfDay(ts, ny))
	assert.Equal(t, int16(14*60+31), MinuteOfDay(ts, time.UTC))
}
