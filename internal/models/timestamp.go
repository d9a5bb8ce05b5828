package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp is an incoming deadline that may or may not carry a UTC offset.
// Naive values are resolved against a location with In.
type Timestamp struct {
	value time.Time
	naive bool
}

// ParseTimestamp accepts RFC 3339 or naive ISO-8601 date-times
func ParseTimestamp(s string) (*Timestamp, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &Timestamp{value: t}, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &Timestamp{value: t, naive: true}, nil
		}
	}
	return nil, fmt.Errorf("invalid datetime: %q", s)
}

// Naive reports whether the value had no UTC offset
func (t *Timestamp) Naive() bool {
	return t.naive
}

// In resolves the timestamp; naive wall-clock values are placed in loc
func (t *Timestamp) In(loc *time.Location) time.Time {
	if !t.naive {
		return t.value
	}
	v := t.value
	return time.Date(v.Year(), v.Month(), v.Day(), v.Hour(), v.Minute(), v.Second(), v.Nanosecond(), loc)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("datetime must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.naive {
		return json.Marshal(t.value.Format("2006-01-02T15:04:05.999999999"))
	}
	return json.Marshal(t.value.Format(time.RFC3339Nano))
}
