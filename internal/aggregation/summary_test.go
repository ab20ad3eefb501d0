package aggregation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/edgemeter/internal/models"
)

func TestSummarize(t *testing.T) {
	e := &Engine{Local: time.UTC}
	ms := []models.Measurement{
		reading(9, "2024-03-01T00:00:00Z", 0.5),
		reading(4, "2024-03-01T00:00:00Z", 0),
		reading(9, "2024-03-01T01:00:00Z", 0.75),
		reading(4, "2024-03-01T01:00:00Z", 1),
		reading(4, "2024-03-01T02:00:00Z", 3),
		reading(4, "2024-03-01T03:00:00Z", 6),
	}

	summaries := e.Summarize(ms, ist)
	require.Len(t, summaries, 2)

	assert.Equal(t, models.ChannelSummary{Channel: 4, Sum: 6, Average: 2, Count: 3}, summaries[0])
	assert.Equal(t, models.ChannelSummary{Channel: 9, Sum: 0.25, Average: 0.25, Count: 1}, summaries[1])
}

func TestSummarizeRoundsAverage(t *testing.T) {
	e := &Engine{Local: time.UTC}
	ms := []models.Measurement{
		reading(1, "2024-03-01T00:00:00Z", 0),
		reading(1, "2024-03-01T01:00:00Z", 1),
		reading(1, "2024-03-01T02:00:00Z", 1),
		reading(1, "2024-03-01T03:00:00Z", 2),
	}

	summaries := e.Summarize(ms, ist)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2.0, summaries[0].Sum)
	assert.Equal(t, 0.6667, summaries[0].Average)
	assert.Equal(t, 3, summaries[0].Count)
}

func TestSummarizeEmpty(t *testing.T) {
	e := NewEngine()
	assert.Empty(t, e.Summarize(nil, nil))
	assert.Empty(t, e.Summarize([]models.Measurement{reading(1, "2024-03-01T00:00:00Z", 3)}, nil))
}
