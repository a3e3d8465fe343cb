package query

import (
	"math"
	"sort"

	"TuneScope/model"
)

// TopN caps the common-keys and common-moods lists in a stats summary.
const TopN = 5

// Stats aggregates a set of records into a summary. Total counts and duration
// cover every record unconditionally; the BPM average covers only records
// with a BPM and reports 0 when there are none. Frequency ties break by
// first-seen order so the output is deterministic.
func Stats(records []*model.TrackRecord) model.StatsSummary {
	summary := model.StatsSummary{
		TotalTracks: int64(len(records)),
		CommonKeys:  []string{},
		CommonMoods: []string{},
	}

	var bpmSum float64
	var bpmCount int
	keyCounts := newCounter()
	moodCounts := newCounter()

	for _, rec := range records {
		summary.TotalDurationSeconds += rec.DurationSeconds
		if rec.BPM != nil {
			bpmSum += *rec.BPM
			bpmCount++
		}
		if rec.Key != nil {
			keyCounts.add(*rec.Key)
		}
		for _, mood := range rec.MoodTags {
			moodCounts.add(mood)
		}
	}

	if bpmCount > 0 {
		summary.AvgBPM = math.Round(bpmSum/float64(bpmCount)*10) / 10
	}
	summary.CommonKeys = keyCounts.top(TopN)
	summary.CommonMoods = moodCounts.top(TopN)
	return summary
}

// counter tallies string frequencies while remembering first-seen order.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(value string) {
	if _, seen := c.counts[value]; !seen {
		c.order = append(c.order, value)
	}
	c.counts[value]++
}

func (c *counter) top(n int) []string {
	values := make([]string, len(c.order))
	copy(values, c.order)
	// Stable sort on the first-seen ordering makes ties deterministic.
	sort.SliceStable(values, func(i, j int) bool {
		return c.counts[values[i]] > c.counts[values[j]]
	})
	if len(values) > n {
		values = values[:n]
	}
	return values
}
