package analysis

import (
	"context"
	"fmt"
	"math"

	"TuneScope/core/audio"
)

// Tempo search range and the silence floor below which audio is considered
// empty for analysis purposes (~-60 dBFS).
const (
	minBPM       = 60.0
	maxBPM       = 200.0
	silenceFloor = 1e-3
	minUsableSR  = 4000

	// Key estimation reads at most this much audio.
	keyAnalysisSeconds = 60
)

// keyNames is the pitch-class vocabulary for key labels.
var keyNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Krumhansl-Kessler tonal profiles. Correlating the observed pitch-class
// energies against rotations of these decides tonic and mode.
var (
	majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// DSPTempoKeyEstimator estimates tempo from the onset-flux autocorrelation and
// key from pitch-class energies. It is stateless and safe for concurrent use.
type DSPTempoKeyEstimator struct{}

// NewTempoKeyEstimator creates the built-in tempo/key estimator.
func NewTempoKeyEstimator() *DSPTempoKeyEstimator {
	return &DSPTempoKeyEstimator{}
}

// EstimateTempoKey implements TempoKeyEstimator. Any returned error means the
// audio is unanalyzable; the aggregator aborts on it.
func (e *DSPTempoKeyEstimator) EstimateTempoKey(ctx context.Context, h *audio.Handle) (TempoKey, error) {
	if h == nil || len(h.Samples) == 0 {
		return TempoKey{}, fmt.Errorf("empty audio")
	}
	if h.SampleRate < minUsableSR {
		return TempoKey{}, fmt.Errorf("sample rate %d below usable minimum", h.SampleRate)
	}
	if h.Peak() < silenceFloor {
		return TempoKey{}, fmt.Errorf("audio is silent")
	}

	bpm, err := estimateBPM(h)
	if err != nil {
		return TempoKey{}, err
	}

	if err := ctx.Err(); err != nil {
		return TempoKey{}, err
	}

	key := estimateKey(h)
	return TempoKey{BPM: bpm, Key: key}, nil
}

// estimateBPM finds the dominant onset period via autocorrelation of the
// energy flux, with a log-gaussian prior centered on 120 BPM so that octave
// ambiguities (65 vs 130) resolve toward the plausible tempo.
func estimateBPM(h *audio.Handle) (float64, error) {
	env := frameRMS(h.Samples)
	flux := onsetFlux(env)

	framesPerSec := float64(h.SampleRate) / hopSize
	minLag := int(math.Floor(framesPerSec * 60.0 / maxBPM))
	maxLag := int(math.Ceil(framesPerSec * 60.0 / minBPM))
	if minLag < 1 {
		minLag = 1
	}
	if len(flux) <= maxLag+1 {
		return 0, fmt.Errorf("audio too short for tempo analysis")
	}

	bestLag, bestScore := 0, 0.0
	scores := make([]float64, maxLag+2)
	for lag := minLag; lag <= maxLag; lag++ {
		bpm := 60.0 * framesPerSec / float64(lag)
		prior := math.Exp(-0.5 * math.Pow(math.Log2(bpm/120.0), 2))
		score := autocorrAt(flux, lag) * prior
		scores[lag] = score
		if score > bestScore {
			bestScore = score
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return 0, fmt.Errorf("no periodic onset structure detected")
	}

	// Parabolic interpolation around the peak for sub-frame lag precision.
	lag := float64(bestLag)
	if bestLag > minLag && bestLag < maxLag {
		y0, y1, y2 := scores[bestLag-1], scores[bestLag], scores[bestLag+1]
		denom := y0 - 2*y1 + y2
		if denom != 0 {
			lag += 0.5 * (y0 - y2) / denom
		}
	}

	return 60.0 * framesPerSec / lag, nil
}

// estimateKey correlates the chroma vector against rotated tonal profiles
// over all 24 major/minor candidates and returns a label like "A minor".
func estimateKey(h *audio.Handle) string {
	chroma := chromaVector(h)

	bestCorr := math.Inf(-1)
	bestTonic, bestMode := 0, "major"
	for tonic := 0; tonic < 12; tonic++ {
		var maj, min [12]float64
		for pc := 0; pc < 12; pc++ {
			maj[pc] = majorProfile[(pc-tonic+12)%12]
			min[pc] = minorProfile[(pc-tonic+12)%12]
		}
		if c := pearson(chroma[:], maj[:]); c > bestCorr {
			bestCorr, bestTonic, bestMode = c, tonic, "major"
		}
		if c := pearson(chroma[:], min[:]); c > bestCorr {
			bestCorr, bestTonic, bestMode = c, tonic, "minor"
		}
	}

	return fmt.Sprintf("%s %s", keyNames[bestTonic], bestMode)
}

// chromaVector accumulates per-pitch-class energy over C2..B5 using a sparse
// Goertzel grid. Energies are normalized to sum 1.
func chromaVector(h *audio.Handle) [12]float64 {
	samples := h.Samples
	if max := keyAnalysisSeconds * h.SampleRate; len(samples) > max {
		samples = samples[:max]
	}

	var chroma [12]float64
	for midi := 36; midi <= 83; midi++ { // C2..B5
		freq := 440.0 * math.Pow(2, float64(midi-69)/12.0)
		if freq >= float64(h.SampleRate)/2 {
			break
		}
		chroma[midi%12] += goertzelPower(samples, h.SampleRate, freq)
	}

	var total float64
	for _, v := range chroma {
		total += v
	}
	if total > 0 {
		for i := range chroma {
			chroma[i] /= total
		}
	}
	return chroma
}
