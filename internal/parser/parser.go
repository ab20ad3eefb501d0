// Package parser turns a raw meter dump into channel readings.
package parser

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tejusbharadwaj/edgemeter/internal/models"
)

// ValueScale converts the unit reported by the meter into the stored unit.
const ValueScale = 1000

var linePattern = regexp.MustCompile(`^channel_(\d{1,2})[ \t]*:[ \t]*([-+]?(?:\d+\.?\d*|\.\d+))`)

// Result carries the readings and how many lines were skipped.
type Result struct {
	Readings []models.Measurement
	Skipped  int
}

// Parse extracts one reading per "channel_<N> : <decimal>" line whose channel
// is in enabled. Every reading is stamped with at truncated to the hour.
// Lines that do not match, or belong to a disabled channel, are skipped.
func Parse(raw string, enabled map[int]bool, at time.Time) Result {
	recorded := TruncateToHour(at)

	var res Result
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			res.Skipped++
			continue
		}
		channel, err := strconv.Atoi(m[1])
		if err != nil || !enabled[channel] {
			res.Skipped++
			continue
		}
		value, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			res.Skipped++
			continue
		}
		res.Readings = append(res.Readings, models.Measurement{
			Channel:      channel,
			Value:        value * ValueScale,
			RecordedTime: recorded,
		})
	}
	return res
}

// TruncateToHour returns the unix time of the top of the hour containing t.
func TruncateToHour(t time.Time) int64 {
	sec := t.Unix()
	return sec - mod(sec, 3600)
}

func mod(a, b int64) int64 {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}
