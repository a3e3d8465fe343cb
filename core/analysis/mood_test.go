package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"TuneScope/model"
)

func bpmPtr(v float64) *float64 { return &v }
func keyPtr(v string) *string   { return &v }

func TestMoodTempoAndKeyRules(t *testing.T) {
	m := NewMoodInferencer()

	tests := []struct {
		name string
		d    Draft
		want []string
	}{
		{
			name: "fast major",
			d:    Draft{BPM: bpmPtr(140), Key: keyPtr("D major")},
			want: []string{"energetic", "uplifting"},
		},
		{
			name: "slow minor",
			d:    Draft{BPM: bpmPtr(70), Key: keyPtr("A minor")},
			want: []string{"calm", "melancholic"},
		},
		{
			name: "mid tempo has no tempo tag",
			d:    Draft{BPM: bpmPtr(100), Key: keyPtr("G major")},
			want: []string{"uplifting"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Infer(tt.d))
		})
	}
}

func TestMoodInstrumentRules(t *testing.T) {
	m := NewMoodInferencer()

	driving := m.Infer(Draft{
		BPM:         bpmPtr(128),
		Instruments: []model.Instrument{{Name: "Drum kit", Confidence: 0.8}},
	})
	assert.Contains(t, driving, "driving")

	mellow := m.Infer(Draft{
		BPM:         bpmPtr(85),
		Instruments: []model.Instrument{{Name: "Piano", Confidence: 0.7}},
	})
	assert.Contains(t, mellow, "mellow")

	// Tempo gate: piano at a fast tempo is not mellow.
	fast := m.Infer(Draft{
		BPM:         bpmPtr(150),
		Instruments: []model.Instrument{{Name: "Piano", Confidence: 0.7}},
	})
	assert.NotContains(t, fast, "mellow")
}

func TestMoodSpectralRules(t *testing.T) {
	m := NewMoodInferencer()

	emb := make([]float64, EmbeddingDim)
	emb[EmbCentroid] = 0.5
	emb[EmbZCR] = 0.2
	emb[EmbRolloff] = 0.8
	got := m.Infer(Draft{Embedding: emb})
	assert.Contains(t, got, "bright")
	assert.Contains(t, got, "aggressive")
	assert.Contains(t, got, "sharp")

	emb = make([]float64, EmbeddingDim)
	emb[EmbCentroid] = 0.05
	emb[EmbZCR] = 0.02
	emb[EmbRolloff] = 0.3
	got = m.Infer(Draft{Embedding: emb})
	assert.Contains(t, got, "dark")
	assert.Contains(t, got, "smooth")
	assert.Contains(t, got, "warm")
}

func TestMoodSpectralRulesRequireFullVector(t *testing.T) {
	m := NewMoodInferencer()

	// A truncated vector carries no trustworthy indices; spectral rules stay off.
	got := m.Infer(Draft{Embedding: []float64{0.9, 0.9}})
	assert.Equal(t, []string{"neutral"}, got)
}

func TestMoodFallsBackToNeutral(t *testing.T) {
	m := NewMoodInferencer()
	assert.Equal(t, []string{"neutral"}, m.Infer(Draft{}))
}
