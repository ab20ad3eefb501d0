package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/edgemeter/internal/models"
)

// StaticRegistry serves a fixed device list, typically from the config file.
type StaticRegistry struct {
	devices map[string]models.Device
	ids     []string
	logger  logrus.FieldLogger
}

// NewStaticRegistry indexes devices by id. Ids must be unique, non-empty and
// free of path separators.
func NewStaticRegistry(devices []models.Device, logger logrus.FieldLogger) (*StaticRegistry, error) {
	r := &StaticRegistry{
		devices: make(map[string]models.Device, len(devices)),
		logger:  logger,
	}
	for _, d := range devices {
		if d.ID == "" {
			return nil, fmt.Errorf("device %q has no id", d.Name)
		}
		if err := models.ValidateDeviceID(d.ID); err != nil {
			return nil, err
		}
		if _, dup := r.devices[d.ID]; dup {
			return nil, fmt.Errorf("duplicate device id: %s", d.ID)
		}
		for i := range d.Channels {
			d.Channels[i].DeviceID = d.ID
		}
		r.devices[d.ID] = d
		r.ids = append(r.ids, d.ID)
	}
	sort.Strings(r.ids)
	return r, nil
}

func (r *StaticRegistry) Devices(_ context.Context) ([]models.Device, error) {
	out := make([]models.Device, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.devices[id])
	}
	return out, nil
}

func (r *StaticRegistry) Device(_ context.Context, id string) (models.Device, error) {
	d, ok := r.devices[id]
	if !ok {
		return models.Device{}, notFound(id)
	}
	return d, nil
}

func (r *StaticRegistry) Location(ctx context.Context, id string) *time.Location {
	return locate(ctx, r, r.logger, id)
}

var _ Registry = (*StaticRegistry)(nil)
