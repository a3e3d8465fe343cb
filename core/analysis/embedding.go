package analysis

import (
	"context"
	"math"

	"TuneScope/core/audio"
)

// The embedding is a fixed-length perceptual summary: a log-spaced band
// energy profile followed by a handful of temporal statistics. Downstream it
// only feeds similarity features and the mood rule layer.
const (
	numBands     = 24
	EmbeddingDim = numBands + 8

	bandMinHz = 50.0
	bandMaxHz = 8000.0

	// Embedding reads at most this much audio.
	embedAnalysisSeconds = 30
)

// Indices of the temporal statistics within the embedding vector. The mood
// inferencer reads these when an embedding is present.
const (
	EmbRMSMean = numBands + iota
	EmbRMSStd
	EmbZCR
	EmbFluxMean
	EmbCentroid
	EmbRolloff
	EmbFlatness
	EmbCrest
)

// BandEnergyExtractor is the built-in embedding extractor. Stateless,
// deterministic, safe for concurrent use.
type BandEnergyExtractor struct{}

// NewEmbeddingExtractor creates the built-in embedding extractor.
func NewEmbeddingExtractor() *BandEnergyExtractor {
	return &BandEnergyExtractor{}
}

// Embed implements EmbeddingExtractor.
func (e *BandEnergyExtractor) Embed(ctx context.Context, h *audio.Handle) ([]float64, error) {
	if h == nil || len(h.Samples) == 0 {
		return nil, &UnavailableError{Reason: "no samples to embed"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, EmbeddingDim)

	bands := bandPowers(h)
	var norm float64
	for i, p := range bands {
		vec[i] = math.Log10(1 + p*1e4)
		norm += vec[i] * vec[i]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := 0; i < numBands; i++ {
			vec[i] /= norm
		}
	}

	env := frameRMS(h.Samples)
	flux := onsetFlux(env)
	rmsMean := mean(env)

	vec[EmbRMSMean] = clamp01(rmsMean * 4)
	vec[EmbRMSStd] = clamp01(stddev(env, rmsMean) * 8)
	vec[EmbZCR] = clamp01(zeroCrossRate(h.Samples))
	vec[EmbFluxMean] = clamp01(mean(flux) * 16)
	vec[EmbCentroid] = bandCentroid(bands)
	vec[EmbRolloff] = bandRolloff(bands, 0.95)
	vec[EmbFlatness] = bandFlatness(bands)
	vec[EmbCrest] = bandCrest(env, rmsMean)

	return vec, nil
}

// bandPowers evaluates signal power over the log-spaced band grid.
func bandPowers(h *audio.Handle) []float64 {
	samples := h.Samples
	if max := embedAnalysisSeconds * h.SampleRate; len(samples) > max {
		samples = samples[:max]
	}

	powers := make([]float64, numBands)
	nyquist := float64(h.SampleRate) / 2
	for i := range powers {
		freq := bandCenter(i)
		if freq >= nyquist {
			break
		}
		powers[i] = goertzelPower(samples, h.SampleRate, freq)
	}
	return powers
}

// bandCenter returns the center frequency of band i on the log grid.
func bandCenter(i int) float64 {
	return bandMinHz * math.Pow(bandMaxHz/bandMinHz, float64(i)/float64(numBands-1))
}

// bandCentroid is the power-weighted mean band position, 0..1.
func bandCentroid(powers []float64) float64 {
	var total, weighted float64
	for i, p := range powers {
		total += p
		weighted += p * float64(i)
	}
	if total == 0 {
		return 0
	}
	return weighted / total / float64(len(powers)-1)
}

// bandRolloff is the normalized band index below which the given fraction of
// total power lies.
func bandRolloff(powers []float64, fraction float64) float64 {
	var total float64
	for _, p := range powers {
		total += p
	}
	if total == 0 {
		return 0
	}
	target := total * fraction
	var cum float64
	for i, p := range powers {
		cum += p
		if cum >= target {
			return float64(i) / float64(len(powers)-1)
		}
	}
	return 1
}

// bandFlatness is the geometric over arithmetic mean of band powers: near 1
// for noise-like spectra, near 0 for tonal ones.
func bandFlatness(powers []float64) float64 {
	var logSum, sum float64
	n := 0
	for _, p := range powers {
		if p <= 0 {
			continue
		}
		logSum += math.Log(p)
		sum += p
		n++
	}
	if n == 0 || sum == 0 {
		return 0
	}
	geo := math.Exp(logSum / float64(n))
	arith := sum / float64(n)
	return clamp01(geo / arith)
}

// bandCrest is the envelope peak over its mean, squashed to 0..1.
func bandCrest(env []float64, rmsMean float64) float64 {
	if rmsMean == 0 {
		return 0
	}
	var peak float64
	for _, v := range env {
		if v > peak {
			peak = v
		}
	}
	return clamp01((peak/rmsMean - 1) / 9)
}
