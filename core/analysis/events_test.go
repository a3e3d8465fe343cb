package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TuneScope/core/audio"
)

func TestClassifyTooShortIsUnavailable(t *testing.T) {
	c := NewSpectralEventClassifier()

	short := clickTrack(120, 0.3, audio.DecodeRate)
	_, err := c.Classify(context.Background(), short)
	require.Error(t, err)

	var unavailable *UnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestClassifyRhythmicAudio(t *testing.T) {
	c := NewSpectralEventClassifier()

	events, err := c.Classify(context.Background(), clickTrack(128, 8, audio.DecodeRate))
	require.NoError(t, err)
	require.NotEmpty(t, events)

	for i, ev := range events {
		assert.GreaterOrEqual(t, ev.Confidence, eventScoreThreshold, ev.Label)
		assert.LessOrEqual(t, ev.Confidence, 1.0, ev.Label)
		if i > 0 {
			assert.GreaterOrEqual(t, events[i-1].Confidence, ev.Confidence,
				"events must be confidence-descending")
		}
	}

	labels := make([]string, len(events))
	for i, ev := range events {
		labels[i] = ev.Label
	}
	assert.Contains(t, labels, "Drum kit")
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewSpectralEventClassifier()
	h := clickTrack(110, 6, audio.DecodeRate)

	first, err := c.Classify(context.Background(), h)
	require.NoError(t, err)
	second, err := c.Classify(context.Background(), h)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
