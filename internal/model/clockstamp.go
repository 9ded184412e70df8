package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockStamp is a match-clock position in milliseconds from the start of
// the period, displayed as "mm:ss.mmm". Millisecond resolution keeps two
// events at the same display clock distinguishable after a +1ms offset.
type ClockStamp int64

// ClockStampFromDuration converts an elapsed duration to a ClockStamp.
func ClockStampFromDuration(d time.Duration) ClockStamp {
	if d < 0 {
		return 0
	}
	return ClockStamp(d.Milliseconds())
}

// Duration returns the stamp as a time.Duration.
func (c ClockStamp) Duration() time.Duration {
	return time.Duration(c) * time.Millisecond
}

// String formats the stamp as "mm:ss.mmm". Minutes do not wrap at 60, so
// stoppage time past 90:00 reads naturally.
func (c ClockStamp) String() string {
	ms := int64(c)
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}

// MarshalText implements encoding.TextMarshaler.
func (c ClockStamp) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ClockStamp) UnmarshalText(text []byte) error {
	parsed, err := ParseClockStamp(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseClockStamp parses "mm:ss" or "mm:ss.mmm". Malformed input returns
// an error; callers that must not fail fall back to zero.
func ParseClockStamp(s string) (ClockStamp, error) {
	minPart, rest, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q: missing colon", s)
	}
	secPart, msPart, hasMillis := strings.Cut(rest, ".")

	minutes, err := strconv.Atoi(minPart)
	if err != nil || minutes < 0 {
		return 0, fmt.Errorf("invalid clock %q: bad minutes", s)
	}
	seconds, err := strconv.Atoi(secPart)
	if err != nil || seconds < 0 || seconds > 59 {
		return 0, fmt.Errorf("invalid clock %q: bad seconds", s)
	}

	millis := 0
	if hasMillis {
		// Right-pad so "12:03.5" reads as 500ms.
		for len(msPart) < 3 {
			msPart += "0"
		}
		millis, err = strconv.Atoi(msPart[:3])
		if err != nil || millis < 0 {
			return 0, fmt.Errorf("invalid clock %q: bad millis", s)
		}
	}

	return ClockStamp(int64(minutes)*60000 + int64(seconds)*1000 + int64(millis)), nil
}
