package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"TuneScope/core/audio"
	"TuneScope/logger"
	"TuneScope/model"

	"github.com/google/uuid"
)

// instrumentKeywords is the subset of the classifier vocabulary that maps
// into the persisted instrument list.
var instrumentKeywords = []string{
	"piano", "guitar", "drum", "bass", "violin", "trumpet",
	"saxophone", "flute", "synthesizer", "keyboard", "organ",
	"percussion", "string", "brass", "woodwind", "electronic",
}

// Options tunes the aggregator.
type Options struct {
	// InstrumentLimit caps the persisted instrument list (top-K by
	// confidence). Zero means the default of 10.
	InstrumentLimit int
}

// Request describes one aggregation: who owns the result, how the file is
// displayed, and which optional stages run.
type Request struct {
	OwnerID  int64
	Filename string
	Format   string
	FileSize int64
	Config   StageConfig
}

// Analyzer is the aggregation contract the batch coordinator depends on.
type Analyzer interface {
	Aggregate(ctx context.Context, h *audio.Handle, req Request) (*model.TrackRecord, error)
}

// Aggregator runs the enabled stages against one handle and merges their
// outputs into a track record. Stage instances are shared read-only; the
// aggregator itself is stateless and safe for concurrent use.
type Aggregator struct {
	stages Stages
	opts   Options
}

// NewAggregator creates an aggregator over the given loaded stages.
func NewAggregator(stages Stages, opts Options) *Aggregator {
	if opts.InstrumentLimit <= 0 {
		opts.InstrumentLimit = 10
	}
	return &Aggregator{stages: stages, opts: opts}
}

// Aggregate implements the merge pipeline: tempo/key first (fatal on error),
// then event classification, then embedding, then the mood rule layer over
// the merged state. Optional stage failures never surface as call errors;
// they are recorded in the analysis flags and leave their fields absent.
func (a *Aggregator) Aggregate(ctx context.Context, h *audio.Handle, req Request) (*model.TrackRecord, error) {
	if req.OwnerID <= 0 {
		return nil, fmt.Errorf("aggregate requires an owner")
	}

	tk, err := a.stages.TempoKey.EstimateTempoKey(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnanalyzableAudio, err)
	}

	flags := model.AnalysisFlags{
		TempoKey:        model.StageOK,
		EventClassifier: model.StageDisabled,
		Embedding:       model.StageDisabled,
		Mood:            model.StageOK,
	}

	var instruments []model.Instrument
	if req.Config.UseEventClassifier {
		events, err := a.stages.Events.Classify(ctx, h)
		flags.EventClassifier = statusFromErr(err)
		if err != nil {
			logger.Warn("event classifier stage degraded",
				logger.String("filename", req.Filename),
				logger.String("status", string(flags.EventClassifier)),
				logger.ErrorField(err))
		} else {
			instruments = mapEventsToInstruments(events, a.opts.InstrumentLimit)
		}
	}

	var embedding []float64
	if req.Config.UseEmbedding {
		vec, err := a.stages.Embedding.Embed(ctx, h)
		flags.Embedding = statusFromErr(err)
		if err != nil {
			logger.Warn("embedding stage degraded",
				logger.String("filename", req.Filename),
				logger.String("status", string(flags.Embedding)),
				logger.ErrorField(err))
		} else {
			embedding = vec
		}
	}

	// Mood consumes the merged state so it can react to tempo, key and
	// instrumentation jointly.
	bpm := tk.BPM
	key := tk.Key
	moods := a.stages.Mood.Infer(Draft{
		BPM:             &bpm,
		Key:             &key,
		Instruments:     instruments,
		Embedding:       embedding,
		DurationSeconds: h.Duration(),
	})

	if instruments == nil {
		instruments = []model.Instrument{}
	}

	return &model.TrackRecord{
		ID:               uuid.New().String(),
		OwnerID:          req.OwnerID,
		Filename:         req.Filename,
		Format:           req.Format,
		FileSize:         req.FileSize,
		DurationSeconds:  h.Duration(),
		BPM:              &bpm,
		Key:              &key,
		Instruments:      instruments,
		MoodTags:         moods,
		EmbeddingSummary: embedding,
		AnalyzedAt:       time.Now().UTC(),
		Flags:            flags,
	}, nil
}

// statusFromErr classifies an optional stage outcome for the analysis flags.
func statusFromErr(err error) model.StageStatus {
	if err == nil {
		return model.StageOK
	}
	var unavailable *UnavailableError
	if errors.As(err, &unavailable) {
		return model.StageUnavailable
	}
	return model.StageFailed
}

// mapEventsToInstruments keeps events whose label matches the instrument
// vocabulary, de-duplicates by name keeping the highest confidence, and
// returns the top-K confidence-descending.
func mapEventsToInstruments(events []Event, limit int) []model.Instrument {
	best := make(map[string]float64)
	order := make([]string, 0, len(events))
	for _, ev := range events {
		if !matchesInstrumentVocabulary(ev.Label) {
			continue
		}
		conf := clamp01(ev.Confidence)
		if prev, seen := best[ev.Label]; seen {
			if conf > prev {
				best[ev.Label] = conf
			}
			continue
		}
		best[ev.Label] = conf
		order = append(order, ev.Label)
	}

	instruments := make([]model.Instrument, 0, len(order))
	for _, name := range order {
		instruments = append(instruments, model.Instrument{Name: name, Confidence: best[name]})
	}
	sort.SliceStable(instruments, func(i, j int) bool {
		return instruments[i].Confidence > instruments[j].Confidence
	})
	if len(instruments) > limit {
		instruments = instruments[:limit]
	}
	return instruments
}

func matchesInstrumentVocabulary(label string) bool {
	lower := strings.ToLower(label)
	for _, kw := range instrumentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
