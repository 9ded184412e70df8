package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockStampString(t *testing.T) {
	tests := []struct {
		stamp ClockStamp
		want  string
	}{
		{0, "00:00.000"},
		{754_000, "12:34.000"},
		{754_321, "12:34.321"},
		{2_700_000, "45:00.000"},
		{5_625_500, "93:45.500"}, // minutes never wrap at 60
		{-5, "00:00.000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.stamp.String())
	}
}

func TestParseClockStamp(t *testing.T) {
	tests := []struct {
		in      string
		want    ClockStamp
		wantErr bool
	}{
		{"12:34", 754_000, false},
		{"12:34.321", 754_321, false},
		{"12:03.5", 723_500, false}, // short millis right-padded
		{"93:45.500", 5_625_500, false},
		{"00:00", 0, false},
		{"1234", 0, true},
		{"12:60", 0, true},
		{"-1:00", 0, true},
		{"12:3x", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClockStamp(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestClockStampJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(ClockStamp(754_321))
	require.NoError(t, err)
	assert.Equal(t, `"12:34.321"`, string(data))

	var parsed ClockStamp
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, ClockStamp(754_321), parsed)
}

func TestClockStampFromDuration(t *testing.T) {
	assert.Equal(t, ClockStamp(61_000), ClockStampFromDuration(61*time.Second))
	assert.Equal(t, ClockStamp(0), ClockStampFromDuration(-time.Second))
}
