package domain

import (
	"fmt"
	"time"
)

// Interval is the closed set of candle granularities. Every component maps
// interval strings through this single table; there is no ad hoc translation
// elsewhere.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// intervalDurations is the canonical Interval -> width mapping.
var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval1h:  time.Hour,
	Interval4h:  4 * time.Hour,
	Interval1d:  24 * time.Hour,
}

// Intervals returns all supported intervals, narrowest first.
func Intervals() []Interval {
	return []Interval{Interval1m, Interval5m, Interval15m, Interval1h, Interval4h, Interval1d}
}

// ParseInterval validates an interval string. Returns an error for anything
// outside the closed set.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if _, ok := intervalDurations[iv]; !ok {
		return "", fmt.Errorf("unsupported interval %q", s)
	}
	return iv, nil
}

// Duration returns the bucket width.
func (i Interval) Duration() time.Duration {
	return intervalDurations[i]
}

// Seconds returns the bucket width in seconds.
func (i Interval) Seconds() int64 {
	return int64(intervalDurations[i] / time.Second)
}

// SubDaily reports whether the interval is narrower than one day.
func (i Interval) SubDaily() bool {
	return i != Interval1d
}

// Truncate returns the calendar-aligned bucket start containing t.
// Sub-unit fields are zeroed in UTC: hourly buckets start at :00:00,
// daily buckets at midnight UTC.
func (i Interval) Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(intervalDurations[i])
}

// Valid reports whether the interval belongs to the closed set.
func (i Interval) Valid() bool {
	_, ok := intervalDurations[i]
	return ok
}
