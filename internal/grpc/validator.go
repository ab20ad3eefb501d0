package server

import (
	"fmt"
	"time"

	"github.com/tejusbharadwaj/edgemeter/internal/models"
)

const (
	maxTimeRange = 2 * 365 * 24 * time.Hour
	minYear      = 1970
	maxYear      = 9999
)

type RequestValidator struct{}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{}
}

// ValidateRange checks the device and time window of a range query.
func (v *RequestValidator) ValidateRange(device string, start, end time.Time) error {
	if device == "" {
		return fmt.Errorf("missing device")
	}
	if err := models.ValidateDeviceID(device); err != nil {
		return err
	}

	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("missing timestamp")
	}

	if start.After(end) {
		return fmt.Errorf("start time must be before end time")
	}

	if end.Sub(start) > maxTimeRange {
		return fmt.Errorf("time range exceeds maximum allowed")
	}

	return nil
}

// ValidateGranularity parses the bucket granularity. Empty means hourly.
func (v *RequestValidator) ValidateGranularity(granularity string) (models.Granularity, error) {
	if granularity == "" {
		return models.Hourly, nil
	}
	return models.ParseGranularity(granularity)
}

// ValidateYear checks a yearly shard query.
func (v *RequestValidator) ValidateYear(device string, year int) error {
	if device == "" {
		return fmt.Errorf("missing device")
	}
	if err := models.ValidateDeviceID(device); err != nil {
		return err
	}
	if year < minYear || year > maxYear {
		return fmt.Errorf("invalid year: %d", year)
	}
	return nil
}

// ValidateChannels rejects negative channel numbers.
func (v *RequestValidator) ValidateChannels(channels []int) error {
	for _, ch := range channels {
		if ch < 0 {
			return fmt.Errorf("invalid channel: %d", ch)
		}
	}
	return nil
}
