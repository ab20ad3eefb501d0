// Package aggregation reconstructs consumption deltas from cumulative meter
// readings.
//
// Each channel keeps a baseline (the last reading a delta was emitted against)
// and the last reading seen. A reading closes a bucket when its timestamp is new
// for the channel and it lies in a later calendar bucket than the baseline:
//   - hourly:  every distinct timestamp
//   - daily:   UTC day start differs from the baseline's by at least one day
//   - monthly: UTC month start differs from the baseline's by at least 0.9 months
//
// Day and month starts are computed on the naive unix timeline, independent of
// any timezone. Device and host timezones only affect how interval boundaries
// are rendered.
package aggregation

import (
	"math"
	"time"

	"github.com/tejusbharadwaj/edgemeter/internal/models"
)

// monthTolerance absorbs daylight-saving drift in elapsed month length.
const monthTolerance = 0.9

type channelState struct {
	baseline models.Measurement
	last     models.Measurement
	seen     int
}

// Engine renders derived records. The zero value renders host-local times with
// time.Local.
type Engine struct {
	// Local is the engine host timezone.
	Local *time.Location
}

// NewEngine returns an engine rendering host times in time.Local.
func NewEngine() *Engine {
	return &Engine{Local: time.Local}
}

// Aggregate converts a chronologically ordered reading sequence into bucketed
// diff records. With includeBaseline set, the first reading of every channel is
// also emitted as a zero-diff record.
//
// When no bucket closes during the whole run, every channel that was observed
// more than once gets one trailing record from its baseline to its last
// reading, so ranges shorter than a bucket still yield a delta.
func (e *Engine) Aggregate(
	measurements []models.Measurement,
	deviceLoc *time.Location,
	granularity models.Granularity,
	includeBaseline bool,
) []models.DerivedRecord {
	if deviceLoc == nil {
		deviceLoc = e.local()
	}

	states := make(map[int]*channelState)
	var order []int
	var records []models.DerivedRecord
	closed := false

	for _, m := range measurements {
		st, ok := states[m.Channel]
		if !ok {
			states[m.Channel] = &channelState{baseline: m, last: m, seen: 1}
			order = append(order, m.Channel)
			if includeBaseline {
				records = append(records, e.record(m, m, 0, deviceLoc))
			}
			continue
		}

		st.seen++
		if m.RecordedTime != st.last.RecordedTime && crossesBoundary(granularity, st.baseline, m) {
			diff := Round4(m.Value - st.baseline.Value)
			records = append(records, e.record(st.baseline, m, diff, deviceLoc))
			st.baseline = m
			closed = true
		}
		st.last = m
	}

	if !closed {
		for _, ch := range order {
			st := states[ch]
			if st.seen < 2 {
				continue
			}
			diff := Round4(st.last.Value - st.baseline.Value)
			records = append(records, e.record(st.baseline, st.last, diff, deviceLoc))
		}
	}

	return records
}

func crossesBoundary(g models.Granularity, baseline, current models.Measurement) bool {
	switch g {
	case models.Daily:
		return (dayStart(current.RecordedTime)-dayStart(baseline.RecordedTime))/secondsPerDay >= 1
	case models.Monthly:
		return monthsBetween(monthStart(baseline.RecordedTime), monthStart(current.RecordedTime)) >= monthTolerance
	default:
		return true
	}
}

func (e *Engine) record(start, end models.Measurement, diff float64, deviceLoc *time.Location) models.DerivedRecord {
	return models.DerivedRecord{
		RecordedTime: end.RecordedTime,
		Channel:      end.Channel,
		Value:        end.Value,
		Diff:         diff,
		Interval: models.Interval{
			Start: e.render(start.RecordedTime, deviceLoc),
			End:   e.render(end.RecordedTime, deviceLoc),
		},
	}
}

func (e *Engine) render(unix int64, deviceLoc *time.Location) models.Timestamp {
	t := time.Unix(unix, 0)
	return models.Timestamp{
		Raw:    unix,
		UTC:    t.UTC().Format(time.RFC3339),
		Device: t.In(deviceLoc).Format(time.RFC3339),
		Local:  t.In(e.local()).Format(time.RFC3339),
	}
}

func (e *Engine) local() *time.Location {
	if e == nil || e.Local == nil {
		return time.Local
	}
	return e.Local
}

// Round4 rounds half away from zero at the fourth decimal place.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
