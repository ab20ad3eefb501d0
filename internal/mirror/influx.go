// Package mirror copies ingested readings to InfluxDB for dashboards.
package mirror

import (
	"context"
	"fmt"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/tejusbharadwaj/edgemeter/internal/models"
)

// Measurement is the InfluxDB measurement name readings are written under.
const Measurement = "energy_reading"

// Config locates the InfluxDB bucket. An empty URL disables mirroring.
type Config struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

// Enabled reports whether a target is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// pointWriter is the part of api.WriteAPIBlocking the mirror needs.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxMirror writes readings as points tagged by device and channel.
type InfluxMirror struct {
	client influxdb2.Client
	writer pointWriter
}

// NewInfluxMirror creates a mirror writing synchronously to cfg.Bucket.
func NewInfluxMirror(cfg Config) *InfluxMirror {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxMirror{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

// Mirror writes one point per reading in a single request.
func (m *InfluxMirror) Mirror(ctx context.Context, device string, readings []models.Measurement) error {
	if len(readings) == 0 {
		return nil
	}

	points := make([]*write.Point, 0, len(readings))
	for _, r := range readings {
		points = append(points, influxdb2.NewPoint(
			Measurement,
			map[string]string{
				"device":  device,
				"channel": strconv.Itoa(r.Channel),
			},
			map[string]interface{}{"value": r.Value},
			r.Time(),
		))
	}

	if err := m.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("error writing to InfluxDB: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (m *InfluxMirror) Close() {
	if m.client != nil {
		m.client.Close()
	}
}
