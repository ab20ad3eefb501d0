package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/edgemeter/internal/models"
)

type recordingWriter struct {
	points []*write.Point
	calls  int
	err    error
}

func (w *recordingWriter) WritePoint(_ context.Context, points ...*write.Point) error {
	w.calls++
	w.points = append(w.points, points...)
	return w.err
}

func TestMirrorWritesOnePointPerReading(t *testing.T) {
	w := &recordingWriter{}
	m := &InfluxMirror{writer: w}

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Unix()
	err := m.Mirror(context.Background(), "meter-01", []models.Measurement{
		{Channel: 0, Value: 1250.5, RecordedTime: at},
		{Channel: 13, Value: 42, RecordedTime: at},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, w.calls)
	require.Len(t, w.points, 2)

	p := w.points[1]
	assert.Equal(t, Measurement, p.Name())
	assert.Equal(t, time.Unix(at, 0).UTC(), p.Time())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"device": "meter-01", "channel": "13"}, tags)

	require.Len(t, p.FieldList(), 1)
	assert.Equal(t, "value", p.FieldList()[0].Key)
	assert.Equal(t, 42.0, p.FieldList()[0].Value)
}

func TestMirrorSkipsEmptyBatch(t *testing.T) {
	w := &recordingWriter{}
	m := &InfluxMirror{writer: w}

	require.NoError(t, m.Mirror(context.Background(), "meter-01", nil))
	assert.Zero(t, w.calls)
}

func TestMirrorWrapsWriteError(t *testing.T) {
	boom := errors.New("unauthorized")
	m := &InfluxMirror{writer: &recordingWriter{err: boom}}

	err := m.Mirror(context.Background(), "meter-01", []models.Measurement{{Channel: 1, Value: 1}})
	assert.ErrorIs(t, err, boom)
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{URL: "http://localhost:8086"}.Enabled())
}
