package aggregation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/edgemeter/internal/models"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func at(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.Unix()
}

func reading(channel int, ts string, value float64) models.Measurement {
	return models.Measurement{Channel: channel, RecordedTime: at(ts), Value: value}
}

func TestAggregateHourly(t *testing.T) {
	e := &Engine{Local: time.UTC}
	ms := []models.Measurement{
		reading(1, "2024-03-01T00:00:00Z", 100.25),
		reading(1, "2024-03-01T01:00:00Z", 101.5),
		reading(1, "2024-03-01T02:00:00Z", 104.0125),
		reading(1, "2024-03-01T03:00:00Z", 104.0125),
		reading(1, "2024-03-01T04:00:00Z", 110.3),
	}

	records := e.Aggregate(ms, ist, models.Hourly, false)
	require.Len(t, records, 4)

	var sum float64
	for _, r := range records {
		assert.GreaterOrEqual(t, r.Diff, 0.0)
		sum += r.Diff
	}
	assert.InDelta(t, 110.3-100.25, sum, 1e-9)

	assert.Equal(t, 1.25, records[0].Diff)
	assert.Equal(t, 101.5, records[0].Value)
	assert.Equal(t, at("2024-03-01T00:00:00Z"), records[0].Interval.Start.Raw)
	assert.Equal(t, at("2024-03-01T01:00:00Z"), records[0].Interval.End.Raw)
	assert.Equal(t, at("2024-03-01T01:00:00Z"), records[0].RecordedTime)
	assert.Equal(t, 0.0, records[2].Diff)
}

func TestAggregateChannelsAreIndependent(t *testing.T) {
	e := &Engine{Local: time.UTC}
	ms := []models.Measurement{
		reading(0, "2024-03-01T00:00:00Z", 10),
		reading(7, "2024-03-01T00:00:00Z", 500),
		reading(0, "2024-03-01T01:00:00Z", 12),
		reading(7, "2024-03-01T01:00:00Z", 530),
		reading(99, "2024-03-01T01:00:00Z", 1),
	}

	records := e.Aggregate(ms, ist, models.Hourly, false)
	require.Len(t, records, 2)
	assert.Equal(t, 0, records[0].Channel)
	assert.Equal(t, 2.0, records[0].Diff)
	assert.Equal(t, 7, records[1].Channel)
	assert.Equal(t, 30.0, records[1].Diff)
}

func TestAggregateDuplicateTimestampIsNotABoundary(t *testing.T) {
	e := &Engine{Local: time.UTC}
	ms := []models.Measurement{
		reading(1, "2024-03-01T00:00:00Z", 10),
		reading(1, "2024-03-01T01:00:00Z", 11),
		reading(1, "2024-03-01T01:00:00Z", 11.5),
		reading(1, "2024-03-01T02:00:00Z", 13),
	}

	records := e.Aggregate(ms, ist, models.Hourly, false)
	require.Len(t, records, 2)
	assert.Equal(t, 1.0, records[0].Diff)
	assert.Equal(t, 2.0, records[1].Diff)
}

func TestAggregateDaily(t *testing.T) {
	e := &Engine{Local: time.UTC}

	t.Run("closes on the next calendar day", func(t *testing.T) {
		ms := []models.Measurement{
			reading(1, "2024-03-01T00:00:00Z", 10),
			reading(1, "2024-03-01T23:00:00Z", 20),
			reading(1, "2024-03-02T23:00:00Z", 35),
		}
		records := e.Aggregate(ms, ist, models.Daily, false)
		require.Len(t, records, 1)
		assert.Equal(t, 25.0, records[0].Diff)
		assert.Equal(t, at("2024-03-01T00:00:00Z"), records[0].Interval.Start.Raw)
		assert.Equal(t, at("2024-03-02T23:00:00Z"), records[0].Interval.End.Raw)
	})

	t.Run("short span flushes once", func(t *testing.T) {
		ms := []models.Measurement{
			reading(1, "2024-03-01T00:00:00Z", 10),
			reading(1, "2024-03-01T12:00:00Z", 14),
			reading(1, "2024-03-01T23:00:00Z", 20),
		}
		records := e.Aggregate(ms, ist, models.Daily, false)
		require.Len(t, records, 1)
		assert.Equal(t, 10.0, records[0].Diff)
		assert.Equal(t, at("2024-03-01T23:00:00Z"), records[0].RecordedTime)
	})

	t.Run("boundary uses utc day", func(t *testing.T) {
		// 17:00 and 20:00 UTC fall on different IST days but the same UTC day.
		ms := []models.Measurement{
			reading(1, "2024-03-01T17:00:00Z", 10),
			reading(1, "2024-03-01T20:00:00Z", 14),
		}
		records := e.Aggregate(ms, ist, models.Daily, false)
		require.Len(t, records, 1)
		assert.Equal(t, 4.0, records[0].Diff)

		ms = append(ms, reading(1, "2024-03-02T00:00:00Z", 18))
		records = e.Aggregate(ms, ist, models.Daily, false)
		require.Len(t, records, 1)
		assert.Equal(t, 8.0, records[0].Diff)
	})
}

func TestAggregateMonthly(t *testing.T) {
	e := &Engine{Local: time.UTC}
	ms := []models.Measurement{
		reading(2, "2024-01-15T10:00:00Z", 1000),
		reading(2, "2024-01-31T23:00:00Z", 1200),
		reading(2, "2024-02-01T00:00:00Z", 1210),
		reading(2, "2024-02-29T23:00:00Z", 1500),
		reading(2, "2024-04-03T00:00:00Z", 1900),
	}

	records := e.Aggregate(ms, ist, models.Monthly, false)
	require.Len(t, records, 2)
	assert.Equal(t, 210.0, records[0].Diff)
	assert.Equal(t, at("2024-02-01T00:00:00Z"), records[0].RecordedTime)
	assert.Equal(t, 690.0, records[1].Diff)
	assert.Equal(t, at("2024-04-03T00:00:00Z"), records[1].RecordedTime)
}

func TestMonthsBetween(t *testing.T) {
	jan := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		to   time.Time
		want float64
	}{
		{"same instant", jan, 0},
		{"one month", time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), 1},
		{"leap february", time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), 2},
		{"within tolerance", time.Date(2024, time.January, 29, 0, 0, 0, 0, time.UTC), 28.0 / 31},
		{"below tolerance", time.Date(2024, time.January, 27, 0, 0, 0, 0, time.UTC), 26.0 / 31},
		{"across year", time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, monthsBetween(jan, tt.to), 1e-9)
		})
	}

	assert.GreaterOrEqual(t, monthsBetween(jan, tests[3].to), monthTolerance)
	assert.Less(t, monthsBetween(jan, tests[4].to), monthTolerance)
	assert.InDelta(t, -1.0, monthsBetween(tests[1].to, jan), 1e-9)
}

func TestAggregateIncludeBaseline(t *testing.T) {
	e := &Engine{Local: time.UTC}
	ms := []models.Measurement{
		reading(1, "2024-03-01T00:00:00Z", 10),
		reading(2, "2024-03-01T00:00:00Z", 50),
		reading(1, "2024-03-01T01:00:00Z", 15),
		reading(2, "2024-03-01T01:00:00Z", 51),
	}

	records := e.Aggregate(ms, ist, models.Hourly, true)
	require.Len(t, records, 4)
	assert.Equal(t, 1, records[0].Channel)
	assert.Equal(t, 0.0, records[0].Diff)
	assert.Equal(t, records[0].Interval.Start, records[0].Interval.End)
	assert.Equal(t, 2, records[1].Channel)
	assert.Equal(t, 0.0, records[1].Diff)
	assert.Equal(t, 5.0, records[2].Diff)
	assert.Equal(t, 1.0, records[3].Diff)
}

func TestAggregateTrailingFlush(t *testing.T) {
	e := &Engine{Local: time.UTC}

	t.Run("only channels seen twice", func(t *testing.T) {
		ms := []models.Measurement{
			reading(1, "2024-03-01T00:00:00Z", 10),
			reading(2, "2024-03-01T00:00:00Z", 70),
			reading(1, "2024-03-01T05:00:00Z", 12.5),
		}
		records := e.Aggregate(ms, ist, models.Monthly, false)
		require.Len(t, records, 1)
		assert.Equal(t, 1, records[0].Channel)
		assert.Equal(t, 2.5, records[0].Diff)
	})

	t.Run("suppressed once any bucket closed", func(t *testing.T) {
		ms := []models.Measurement{
			reading(1, "2024-03-01T00:00:00Z", 10),
			reading(2, "2024-03-01T00:00:00Z", 70),
			reading(1, "2024-03-02T00:00:00Z", 20),
			reading(2, "2024-03-01T06:00:00Z", 75),
		}
		records := e.Aggregate(ms, ist, models.Daily, false)
		require.Len(t, records, 1)
		assert.Equal(t, 1, records[0].Channel)
	})

	t.Run("single reading yields nothing", func(t *testing.T) {
		ms := []models.Measurement{reading(1, "2024-03-01T00:00:00Z", 10)}
		assert.Empty(t, e.Aggregate(ms, ist, models.Daily, false))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, e.Aggregate(nil, ist, models.Hourly, true))
	})
}

func TestAggregateNegativeDiffIsKept(t *testing.T) {
	e := &Engine{Local: time.UTC}
	ms := []models.Measurement{
		reading(3, "2024-03-01T00:00:00Z", 10),
		reading(3, "2024-03-01T01:00:00Z", 7.75),
	}
	records := e.Aggregate(ms, ist, models.Hourly, false)
	require.Len(t, records, 1)
	assert.Equal(t, -2.25, records[0].Diff)
}

func TestAggregateRendersTimezones(t *testing.T) {
	e := &Engine{Local: time.FixedZone("EST", -5*3600)}
	ms := []models.Measurement{
		reading(1, "2024-03-01T00:00:00Z", 1),
		reading(1, "2024-03-01T01:00:00Z", 2),
	}
	records := e.Aggregate(ms, ist, models.Hourly, false)
	require.Len(t, records, 1)

	start := records[0].Interval.Start
	assert.Equal(t, at("2024-03-01T00:00:00Z"), start.Raw)
	assert.Equal(t, "2024-03-01T00:00:00Z", start.UTC)
	assert.Equal(t, "2024-03-01T05:30:00+05:30", start.Device)
	assert.Equal(t, "2024-02-29T19:00:00-05:00", start.Local)

	end := records[0].Interval.End
	assert.Equal(t, "2024-03-01T06:30:00+05:30", end.Device)
}

func TestAggregateNilDeviceZoneUsesHostZone(t *testing.T) {
	e := &Engine{Local: time.UTC}
	ms := []models.Measurement{
		reading(1, "2024-03-01T00:00:00Z", 1),
		reading(1, "2024-03-01T01:00:00Z", 2),
	}
	records := e.Aggregate(ms, nil, models.Hourly, false)
	require.Len(t, records, 1)
	assert.Equal(t, records[0].Interval.Start.Local, records[0].Interval.Start.Device)
}

func TestRound4(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.23456, 1.2346},
		{1.23454, 1.2345},
		{-1.23456, -1.2346},
		{2, 2},
		{0.00004, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round4(tt.in), "Round4(%v)", tt.in)
	}
}
