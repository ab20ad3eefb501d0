package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tejusbharadwaj/edgemeter/internal/models"
)

func TestRequestValidator_ValidateRange(t *testing.T) {
	validator := NewRequestValidator()
	now := time.Now()

	tests := []struct {
		name       string
		device     string
		start      time.Time
		end        time.Time
		wantErr    bool
		errMessage string
	}{
		{
			name:   "valid request",
			device: "meter-01",
			start:  now.Add(-24 * time.Hour),
			end:    now,
		},
		{
			name:   "single instant",
			device: "meter-01",
			start:  now,
			end:    now,
		},
		{
			name:       "missing device",
			start:      now.Add(-24 * time.Hour),
			end:        now,
			wantErr:    true,
			errMessage: "missing device",
		},
		{
			name:       "device escaping the data root",
			device:     "../elsewhere/secret",
			start:      now.Add(-24 * time.Hour),
			end:        now,
			wantErr:    true,
			errMessage: `invalid device id: "../elsewhere/secret"`,
		},
		{
			name:       "missing timestamp",
			device:     "meter-01",
			start:      time.Time{},
			end:        now,
			wantErr:    true,
			errMessage: "missing timestamp",
		},
		{
			name:       "invalid time range",
			device:     "meter-01",
			start:      now,
			end:        now.Add(-24 * time.Hour),
			wantErr:    true,
			errMessage: "start time must be before end time",
		},
		{
			name:       "exceeds max time range",
			device:     "meter-01",
			start:      now.Add(-3 * 365 * 24 * time.Hour),
			end:        now,
			wantErr:    true,
			errMessage: "time range exceeds maximum allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateRange(tt.device, tt.start, tt.end)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, tt.errMessage, err.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequestValidator_ValidateGranularity(t *testing.T) {
	validator := NewRequestValidator()

	tests := []struct {
		in      string
		want    models.Granularity
		wantErr bool
	}{
		{in: "", want: models.Hourly},
		{in: "hourly", want: models.Hourly},
		{in: "daily", want: models.Daily},
		{in: "monthly", want: models.Monthly},
		{in: "1h", wantErr: true},
		{in: "Daily", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := validator.ValidateGranularity(tt.in)
			if tt.wantErr {
				assert.EqualError(t, err, "invalid granularity: "+tt.in)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestValidator_ValidateYear(t *testing.T) {
	validator := NewRequestValidator()

	assert.NoError(t, validator.ValidateYear("meter-01", 2023))
	assert.NoError(t, validator.ValidateYear("meter-01", 1970))
	assert.EqualError(t, validator.ValidateYear("", 2023), "missing device")
	assert.ErrorIs(t, validator.ValidateYear("..", 2023), models.ErrInvalidDeviceID)
	assert.EqualError(t, validator.ValidateYear("meter-01", 0), "invalid year: 0")
	assert.EqualError(t, validator.ValidateYear("meter-01", 10000), "invalid year: 10000")
}

func TestRequestValidator_ValidateChannels(t *testing.T) {
	validator := NewRequestValidator()

	assert.NoError(t, validator.ValidateChannels(nil))
	assert.NoError(t, validator.ValidateChannels([]int{0, 13, 99}))
	assert.EqualError(t, validator.ValidateChannels([]int{1, -2}), "invalid channel: -2")
}
