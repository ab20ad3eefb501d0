package aggregation

import (
	"sort"
	"time"

	"github.com/tejusbharadwaj/edgemeter/internal/models"
)

// Summarize folds the hourly diffs of every channel into a sum and an average.
// Baseline records are not emitted, so every counted record carries a real diff.
func (e *Engine) Summarize(measurements []models.Measurement, deviceLoc *time.Location) []models.ChannelSummary {
	records := e.Aggregate(measurements, deviceLoc, models.Hourly, false)

	byChannel := make(map[int]*models.ChannelSummary)
	for _, r := range records {
		s, ok := byChannel[r.Channel]
		if !ok {
			s = &models.ChannelSummary{Channel: r.Channel}
			byChannel[r.Channel] = s
		}
		s.Sum += r.Diff
		s.Count++
	}

	summaries := make([]models.ChannelSummary, 0, len(byChannel))
	for _, s := range byChannel {
		s.Average = Round4(s.Sum / float64(s.Count))
		s.Sum = Round4(s.Sum)
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Channel < summaries[j].Channel
	})
	return summaries
}
