package analysis

import (
	"strings"

	"TuneScope/model"
)

// Mood rule thresholds. Tempo bounds follow common dance/ballad conventions;
// the spectral thresholds are in embedding-normalized units.
const (
	energeticBPM = 125.0
	calmBPM      = 80.0
	drivingBPM   = 110.0
	mellowBPM    = 95.0

	brightCentroid = 0.35
	darkCentroid   = 0.12
	aggressiveZCR  = 0.15
	smoothZCR      = 0.05
	sharpRolloff   = 0.60
)

// RuleMoodInferencer derives mood tags from merged record state. It degrades
// gracefully: each rule only fires when its inputs are present, and the
// result falls back to "neutral" when nothing fires.
type RuleMoodInferencer struct{}

// NewMoodInferencer creates the built-in mood rule layer.
func NewMoodInferencer() *RuleMoodInferencer {
	return &RuleMoodInferencer{}
}

// Infer implements MoodInferencer. Tag order is stable for display; queries
// treat the result as a set.
func (m *RuleMoodInferencer) Infer(d Draft) []string {
	var tags []string
	add := func(tag string) {
		for _, t := range tags {
			if t == tag {
				return
			}
		}
		tags = append(tags, tag)
	}

	if d.BPM != nil {
		switch {
		case *d.BPM >= energeticBPM:
			add("energetic")
		case *d.BPM <= calmBPM:
			add("calm")
		}
	}

	if d.Key != nil {
		if strings.HasSuffix(*d.Key, "minor") {
			add("melancholic")
		} else {
			add("uplifting")
		}
	}

	if d.BPM != nil && len(d.Instruments) > 0 {
		if *d.BPM >= drivingBPM && hasInstrument(d.Instruments, "drum", "percussion") {
			add("driving")
		}
		if *d.BPM <= mellowBPM && hasInstrument(d.Instruments, "piano", "string") {
			add("mellow")
		}
	}

	if len(d.Embedding) == EmbeddingDim {
		if c := d.Embedding[EmbCentroid]; c > brightCentroid {
			add("bright")
		} else if c < darkCentroid {
			add("dark")
		}
		if z := d.Embedding[EmbZCR]; z > aggressiveZCR {
			add("aggressive")
		} else if z < smoothZCR {
			add("smooth")
		}
		if d.Embedding[EmbRolloff] > sharpRolloff {
			add("sharp")
		} else {
			add("warm")
		}
	}

	if len(tags) == 0 {
		tags = append(tags, "neutral")
	}
	return tags
}

// hasInstrument reports whether any instrument name contains one of the
// keywords (case-insensitive).
func hasInstrument(instruments []model.Instrument, keywords ...string) bool {
	for _, inst := range instruments {
		name := strings.ToLower(inst.Name)
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				return true
			}
		}
	}
	return false
}
