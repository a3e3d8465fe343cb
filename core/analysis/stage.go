package analysis

import (
	"context"
	"errors"

	"TuneScope/core/audio"
	"TuneScope/model"
)

// ErrUnanalyzableAudio is returned when the mandatory tempo/key stage cannot
// process the input at all. It is the only fatal pipeline error: optional
// stage failures degrade the record instead.
var ErrUnanalyzableAudio = errors.New("unanalyzable audio")

// UnavailableError marks an optional stage that could not run (model not
// loaded, input outside its operating envelope). Distinct from a failure so
// that analysis flags can tell the two apart.
type UnavailableError struct {
	Reason string
}

func (e *UnavailableError) Error() string {
	return "stage unavailable: " + e.Reason
}

// TempoKey is the payload of the mandatory tempo/key stage.
type TempoKey struct {
	BPM float64
	Key string
}

// TempoKeyEstimator estimates tempo and musical key. It is always invoked and
// its failure aborts the whole aggregation.
type TempoKeyEstimator interface {
	EstimateTempoKey(ctx context.Context, h *audio.Handle) (TempoKey, error)
}

// Event is one ranked label produced by an event classifier.
type Event struct {
	Label      string
	Confidence float64
}

// EventClassifier ranks sound-event labels for a handle. Implementations are
// black boxes behind this contract; the aggregator maps a subset of the label
// vocabulary into the instrument list.
type EventClassifier interface {
	Classify(ctx context.Context, h *audio.Handle) ([]Event, error)
}

// EmbeddingExtractor produces a fixed-length perceptual summary vector.
type EmbeddingExtractor interface {
	Embed(ctx context.Context, h *audio.Handle) ([]float64, error)
}

// Draft is the merged record state handed to the mood inferencer. Fields are
// nil/empty when the corresponding upstream stage did not run or failed.
type Draft struct {
	BPM             *float64
	Key             *string
	Instruments     []model.Instrument
	Embedding       []float64
	DurationSeconds float64
}

// MoodInferencer derives mood tags from merged record state. It is a rule
// layer, not a raw-audio model: with fewer upstream signals it produces fewer
// or looser tags, never an error.
type MoodInferencer interface {
	Infer(d Draft) []string
}

// Stages bundles the loaded analysis capabilities. The instances are created
// once at process start and shared read-only across concurrent aggregations.
type Stages struct {
	TempoKey  TempoKeyEstimator
	Events    EventClassifier
	Embedding EmbeddingExtractor
	Mood      MoodInferencer
}

// DefaultStages returns the built-in stage implementations.
func DefaultStages() Stages {
	return Stages{
		TempoKey:  NewTempoKeyEstimator(),
		Events:    NewSpectralEventClassifier(),
		Embedding: NewEmbeddingExtractor(),
		Mood:      NewMoodInferencer(),
	}
}

// StageConfig selects which optional stages run for one aggregation. The
// tempo/key stage and the mood rule layer are always on.
type StageConfig struct {
	UseEventClassifier bool
	UseEmbedding       bool
}

// DefaultStageConfig enables every optional stage.
func DefaultStageConfig() StageConfig {
	return StageConfig{UseEventClassifier: true, UseEmbedding: true}
}
