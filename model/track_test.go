package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageStatusSucceeded(t *testing.T) {
	assert.True(t, StageOK.Succeeded())
	assert.False(t, StageFailed.Succeeded())
	assert.False(t, StageUnavailable.Succeeded())
	assert.False(t, StageDisabled.Succeeded())
}

func TestHasMood(t *testing.T) {
	rec := &TrackRecord{MoodTags: []string{"energetic", "bright"}}
	assert.True(t, rec.HasMood("energetic"))
	assert.False(t, rec.HasMood("Bright"), "membership is an exact match")
	assert.False(t, rec.HasMood("calm"))
	assert.False(t, (&TrackRecord{}).HasMood("calm"))
}
