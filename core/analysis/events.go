package analysis

import (
	"context"
	"math"

	"TuneScope/core/audio"
)

// minClassifierSeconds is the shortest input the classifier accepts; below it
// the stage reports itself unavailable rather than guessing.
const minClassifierSeconds = 0.5

// eventScoreThreshold drops labels the classifier is not confident about.
const eventScoreThreshold = 0.1

// SpectralEventClassifier is the built-in event classifier. It scores a small
// label vocabulary from spectral and rhythmic features of the handle. A
// model-backed classifier can replace it behind the EventClassifier contract.
type SpectralEventClassifier struct{}

// NewSpectralEventClassifier creates the built-in classifier.
func NewSpectralEventClassifier() *SpectralEventClassifier {
	return &SpectralEventClassifier{}
}

// Classify implements EventClassifier. Results are confidence-descending and
// already thresholded; the aggregator applies vocabulary mapping and the
// top-K cap.
func (c *SpectralEventClassifier) Classify(ctx context.Context, h *audio.Handle) ([]Event, error) {
	if h == nil || h.Duration() < minClassifierSeconds {
		return nil, &UnavailableError{Reason: "audio shorter than classifier analysis window"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := extractClassifierFeatures(h)

	var events []Event
	add := func(label string, conf float64) {
		if conf > eventScoreThreshold {
			events = append(events, Event{Label: label, Confidence: clamp01(conf)})
		}
	}

	// Rhythmic content.
	add("Drum kit", f.rhythmStrength)
	add("Percussion", f.rhythmStrength*0.8)

	// Low-frequency weight.
	add("Bass guitar", f.bassRatio*1.5)

	// Harmonic, pitched content. Bright harmonics read as synthetic.
	if f.harmonicity > 1.5 {
		pitched := clamp01((f.harmonicity - 1.5) / 4.0)
		if f.centroidNorm > 0.35 {
			add("Synthesizer", pitched)
			add("Electronic music", pitched*0.7)
		} else {
			add("Piano", pitched)
			add("Keyboard (musical)", pitched*0.6)
		}
		if f.zcr < 0.05 && f.centroidNorm < 0.2 {
			add("String section", pitched*0.5)
		}
	}

	// Noisy, edgy content.
	if f.zcr > 0.12 {
		add("Electric guitar", clamp01((f.zcr-0.12)*4))
	}

	sortEventsByConfidence(events)
	return events, nil
}

type classifierFeatures struct {
	rhythmStrength float64 // normalized onset periodicity, 0..1
	bassRatio      float64 // energy below 250 Hz over total band energy
	centroidNorm   float64 // band-energy centroid, 0..1 across the band grid
	harmonicity    float64 // chroma peak-to-mean ratio, >=1
	zcr            float64
}

func extractClassifierFeatures(h *audio.Handle) classifierFeatures {
	var f classifierFeatures

	f.zcr = zeroCrossRate(h.Samples)

	env := frameRMS(h.Samples)
	flux := onsetFlux(env)
	f.rhythmStrength = rhythmStrength(flux, h.SampleRate)

	bands := bandPowers(h)
	var total, low, weighted float64
	for i, p := range bands {
		total += p
		if bandCenter(i) < 250 {
			low += p
		}
		weighted += p * float64(i)
	}
	if total > 0 {
		f.bassRatio = low / total
		f.centroidNorm = weighted / total / float64(len(bands)-1)
	}

	chroma := chromaVector(h)
	mu := mean(chroma[:])
	if mu > 0 {
		var peak float64
		for _, v := range chroma {
			if v > peak {
				peak = v
			}
		}
		f.harmonicity = peak / mu
	}

	return f
}

// rhythmStrength is the best normalized autocorrelation of the onset flux in
// the tempo lag range, scaled against the flux energy at lag zero.
func rhythmStrength(flux []float64, sampleRate int) float64 {
	if len(flux) < 4 {
		return 0
	}
	framesPerSec := float64(sampleRate) / hopSize
	minLag := int(math.Floor(framesPerSec * 60.0 / maxBPM))
	maxLag := int(math.Ceil(framesPerSec * 60.0 / minBPM))
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(flux) {
		maxLag = len(flux) - 1
	}

	var zero float64
	for _, v := range flux {
		zero += v * v
	}
	zero /= float64(len(flux))
	if zero <= 0 {
		return 0
	}
	var best float64
	for lag := minLag; lag <= maxLag; lag++ {
		if v := autocorrAt(flux, lag); v > best {
			best = v
		}
	}
	return clamp01(best / zero * 2)
}

func sortEventsByConfidence(events []Event) {
	// Insertion sort keeps the emit order stable for equal confidences.
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j].Confidence > events[j-1].Confidence; j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
}
