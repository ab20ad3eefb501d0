// Package ingest runs one poll of a meter: fetch the dump, parse it, and
// persist the readings in a single shard transaction.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/edgemeter/internal/database"
	"github.com/tejusbharadwaj/edgemeter/internal/meter"
	"github.com/tejusbharadwaj/edgemeter/internal/models"
	"github.com/tejusbharadwaj/edgemeter/internal/parser"
)

// maxChannel is the highest channel index the wire format can carry.
const maxChannel = 99

// Poll results recorded in edgemeter_polls_total.
const (
	ResultOK         = "ok"
	ResultEmpty      = "empty"
	ResultTimeout    = "timeout"
	ResultError      = "error"
	ResultStoreError = "store_error"
)

// Fetcher pulls the raw reading dump from a meter.
type Fetcher interface {
	Fetch(ctx context.Context, host string, port int) (string, error)
}

// Mirror receives a copy of every persisted batch.
type Mirror interface {
	Mirror(ctx context.Context, device string, readings []models.Measurement) error
}

// Metrics are the poll counters exported on /metrics.
type Metrics struct {
	Polls    *prometheus.CounterVec
	Readings *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the poll metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgemeter_polls_total",
			Help: "Meter polls by device and result.",
		}, []string{"device", "result"}),
		Readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edgemeter_readings_ingested_total",
			Help: "Readings written to the shard store.",
		}, []string{"device"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edgemeter_poll_duration_seconds",
			Help:    "Wall time of a full poll.",
			Buckets: prometheus.DefBuckets,
		}, []string{"device"}),
	}
	reg.MustRegister(m.Polls, m.Readings, m.Duration)
	return m
}

// Ingestor polls meters and stores their readings.
type Ingestor struct {
	fetcher Fetcher
	repo    database.Repository
	mirror  Mirror
	metrics *Metrics
	logger  logrus.FieldLogger
}

// NewIngestor wires a poller. mirror may be nil.
func NewIngestor(fetcher Fetcher, repo database.Repository, mirror Mirror, metrics *Metrics, logger logrus.FieldLogger) *Ingestor {
	return &Ingestor{
		fetcher: fetcher,
		repo:    repo,
		mirror:  mirror,
		metrics: metrics,
		logger:  logger,
	}
}

// Poll fetches one dump from device and writes its readings, stamped with now
// truncated to the hour, into the month shard for now. It returns the number
// of rows written.
//
// Polls of the same device must not overlap.
func (i *Ingestor) Poll(ctx context.Context, device models.Device, now time.Time) (int, error) {
	start := time.Now()
	result := ResultOK
	log := i.logger.WithFields(logrus.Fields{
		"device":  device.ID,
		"poll_id": uuid.New().String(),
	})
	defer func() {
		i.metrics.Polls.WithLabelValues(device.ID, result).Inc()
		i.metrics.Duration.WithLabelValues(device.ID).Observe(time.Since(start).Seconds())
	}()

	raw, err := i.fetcher.Fetch(ctx, device.Address, device.Port)
	if err != nil {
		result = ResultError
		if errors.Is(err, meter.ErrConnectionTimeout) {
			result = ResultTimeout
			log.WithField("partial_bytes", len(raw)).Debug("Discarding partial dump")
		}
		return 0, fmt.Errorf("poll %s: %w", device.ID, err)
	}

	parsed := parser.Parse(raw, enabledChannels(device), now)
	if parsed.Skipped > 0 {
		log.WithField("skipped", parsed.Skipped).Debug("Skipped unrecognized lines")
	}
	if len(parsed.Readings) == 0 {
		result = ResultEmpty
		log.Warn("Meter returned no readings")
		return 0, nil
	}

	if err := i.repo.Write(ctx, device.ID, now, parsed.Readings); err != nil {
		result = ResultStoreError
		return 0, fmt.Errorf("store readings of %s: %w", device.ID, err)
	}
	i.metrics.Readings.WithLabelValues(device.ID).Add(float64(len(parsed.Readings)))

	if i.mirror != nil {
		if err := i.mirror.Mirror(ctx, device.ID, parsed.Readings); err != nil {
			log.WithError(err).Warn("Mirror write failed")
		}
	}

	log.WithFields(logrus.Fields{
		"channel_count": len(parsed.Readings),
		"duration":      time.Since(start),
	}).Info("Poll stored")
	return len(parsed.Readings), nil
}

// enabledChannels returns the channels to keep. A device without channel
// configuration keeps every channel the wire format can carry.
func enabledChannels(device models.Device) map[int]bool {
	if len(device.Channels) > 0 {
		return device.EnabledChannels()
	}
	all := make(map[int]bool, maxChannel+1)
	for ch := 0; ch <= maxChannel; ch++ {
		all[ch] = true
	}
	return all
}
