package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"TuneScope/model"
)

func statsRecord(bpm float64, key string, duration float64, moods ...string) *model.TrackRecord {
	return &model.TrackRecord{
		BPM:             fptr(bpm),
		Key:             sptr(key),
		DurationSeconds: duration,
		MoodTags:        moods,
	}
}

func TestStatsEmptyLibrary(t *testing.T) {
	summary := Stats(nil)

	assert.Equal(t, int64(0), summary.TotalTracks)
	assert.Equal(t, 0.0, summary.AvgBPM)
	assert.Equal(t, 0.0, summary.TotalDurationSeconds)
	assert.NotNil(t, summary.CommonKeys)
	assert.Empty(t, summary.CommonKeys)
	assert.NotNil(t, summary.CommonMoods)
	assert.Empty(t, summary.CommonMoods)
}

func TestStatsAveragesAndTotals(t *testing.T) {
	records := []*model.TrackRecord{
		statsRecord(120, "C major", 180, "energetic"),
		statsRecord(125, "A minor", 240, "energetic", "melancholic"),
		statsRecord(90, "A minor", 200, "calm"),
	}

	summary := Stats(records)

	assert.Equal(t, int64(3), summary.TotalTracks)
	assert.Equal(t, 111.7, summary.AvgBPM) // (120+125+90)/3 rounded to one decimal
	assert.Equal(t, 620.0, summary.TotalDurationSeconds)
	assert.Equal(t, []string{"A minor", "C major"}, summary.CommonKeys)
	assert.Equal(t, []string{"energetic", "melancholic", "calm"}, summary.CommonMoods)
}

func TestStatsSkipsMissingBPM(t *testing.T) {
	noBPM := &model.TrackRecord{DurationSeconds: 60}
	records := []*model.TrackRecord{
		statsRecord(100, "C major", 120),
		noBPM,
	}

	summary := Stats(records)

	assert.Equal(t, int64(2), summary.TotalTracks, "records without BPM still count")
	assert.Equal(t, 100.0, summary.AvgBPM, "average covers only records with BPM")
	assert.Equal(t, 180.0, summary.TotalDurationSeconds)
}

func TestStatsAllRecordsMissingBPM(t *testing.T) {
	summary := Stats([]*model.TrackRecord{{DurationSeconds: 60}, {DurationSeconds: 30}})
	assert.Equal(t, 0.0, summary.AvgBPM)
}

func TestStatsTopListsAreCappedAndDeterministic(t *testing.T) {
	var records []*model.TrackRecord
	keys := []string{"C major", "D major", "E major", "F major", "G major", "A major", "B major"}
	for _, k := range keys {
		records = append(records, statsRecord(120, k, 60))
	}

	summary := Stats(records)

	// All keys tie at one occurrence; first-seen order breaks the tie and the
	// list is capped at TopN.
	assert.Equal(t, keys[:TopN], summary.CommonKeys)
}
