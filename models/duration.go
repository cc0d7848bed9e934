package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Duration stores a human-configured duration as hours and minutes so the
// JSON API and the JSONB column both read naturally.
type Duration struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// FromDuration converts a time.Duration to its hours/minutes form, truncating
// below the minute.
func FromDuration(d time.Duration) Duration {
	mins := int(d / time.Minute)
	return Duration{Hours: mins / 60, Minutes: mins % 60}
}

// Value implements the driver.Valuer interface.
func (d Duration) Value() (driver.Value, error) {
	jsonData, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(jsonData), nil // stored as JSONB
}

// Scan implements the sql.Scanner interface.
func (d *Duration) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal Duration: unsupported type %T", value)
	}

	return json.Unmarshal(data, d)
}

// ToDuration converts to a time.Duration.
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d.Hours)*time.Hour + time.Duration(d.Minutes)*time.Minute
}
