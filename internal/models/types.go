package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidDeviceID is returned for device ids that cannot name a shard directory.
var ErrInvalidDeviceID = errors.New("invalid device id")

// Device is a networked power meter as known to the registry.
type Device struct {
	ID       string    `json:"id" mapstructure:"id"`
	Name     string    `json:"name" mapstructure:"name"`
	Address  string    `json:"address" mapstructure:"address"`
	Port     int       `json:"port" mapstructure:"port"`
	Timezone string    `json:"timezone" mapstructure:"timezone"`
	Enabled  bool      `json:"enabled" mapstructure:"enabled"`
	Channels []Channel `json:"channels" mapstructure:"channels"`
}

// EnabledChannels returns the set of channel numbers the device should report.
func (d Device) EnabledChannels() map[int]bool {
	set := make(map[int]bool, len(d.Channels))
	for _, ch := range d.Channels {
		if ch.Enabled {
			set[ch.Number] = true
		}
	}
	return set
}

// ValidateDeviceID checks that id is usable as a single path element below the
// data root.
func ValidateDeviceID(id string) error {
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, `/\`) || !filepath.IsLocal(id) {
		return fmt.Errorf("%w: %q", ErrInvalidDeviceID, id)
	}
	return nil
}

// Channel is one metering input of a device.
type Channel struct {
	ID       int64  `json:"id" mapstructure:"id"`
	DeviceID string `json:"device_id" mapstructure:"device_id"`
	Number   int    `json:"number" mapstructure:"number"`
	Name     string `json:"name" mapstructure:"name"`
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
}

// Measurement is a single cumulative counter reading as stored in a shard.
type Measurement struct {
	ID           int64   `json:"id"`
	Channel      int     `json:"channel"`
	Value        float64 `json:"measured_value"`
	RecordedTime int64   `json:"recorded_time"`
}

// Time returns the reading time in UTC.
func (m Measurement) Time() time.Time {
	return time.Unix(m.RecordedTime, 0).UTC()
}

// Granularity is the calendar resolution diffs are emitted at.
type Granularity string

const (
	Hourly  Granularity = "hourly"
	Daily   Granularity = "daily"
	Monthly Granularity = "monthly"
)

// ParseGranularity validates a granularity name.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case Hourly, Daily, Monthly:
		return g, nil
	default:
		return "", fmt.Errorf("invalid granularity: %s", s)
	}
}

// Timestamp renders one instant in the four representations callers consume.
type Timestamp struct {
	Raw    int64  `json:"raw"`
	UTC    string `json:"utc"`
	Device string `json:"device"`
	Local  string `json:"local"`
}

// Interval is the span a derived record covers.
type Interval struct {
	Start Timestamp `json:"start"`
	End   Timestamp `json:"end"`
}

// DerivedRecord is a consumption delta between two cumulative readings.
type DerivedRecord struct {
	RecordedTime int64    `json:"recorded_time"`
	Channel      int      `json:"channel"`
	Value        float64  `json:"measured_value"`
	Diff         float64  `json:"diff"`
	Interval     Interval `json:"interval"`
}

// ChannelSummary folds the hourly diffs of one channel.
type ChannelSummary struct {
	Channel int     `json:"channel"`
	Sum     float64 `json:"sum"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}
