// Package registry resolves the devices to poll and their timezones.
//
// Two implementations are provided: a static registry built from the config
// file and a Postgres-backed registry reading the devices and channels tables.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/edgemeter/internal/models"
)

// ErrDeviceNotFound is returned when no device has the requested id.
var ErrDeviceNotFound = errors.New("device not found")

// Registry is the device lookup consumed by ingestion and queries.
type Registry interface {
	// Devices lists every known device, enabled or not, ordered by id.
	Devices(ctx context.Context) ([]models.Device, error)

	// Device returns one device with its channels.
	Device(ctx context.Context, id string) (models.Device, error)

	// Location returns the device timezone. Unknown devices and missing or
	// invalid timezones resolve to the host local zone.
	Location(ctx context.Context, id string) *time.Location
}

func locate(ctx context.Context, r Registry, logger logrus.FieldLogger, id string) *time.Location {
	d, err := r.Device(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrDeviceNotFound) {
			logger.WithError(err).WithField("device", id).Warn("Timezone lookup failed, using host zone")
		}
		return time.Local
	}
	if d.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"device":   id,
			"timezone": d.Timezone,
		}).Warn("Unknown timezone, using host zone")
		return time.Local
	}
	return loc
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
}
