package analysis

// Shared signal helpers for the built-in stages. Inputs are mono PCM in
// [-1, 1] as produced by the audio package.

import "math"

const (
	frameSize = 1024
	hopSize   = 512
)

// frameRMS computes the RMS energy envelope with frameSize/hopSize framing.
func frameRMS(samples []float64) []float64 {
	if len(samples) < frameSize {
		return nil
	}
	n := 1 + (len(samples)-frameSize)/hopSize
	env := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hopSize
		var sum float64
		for _, s := range samples[start : start+frameSize] {
			sum += s * s
		}
		env[i] = math.Sqrt(sum / frameSize)
	}
	return env
}

// onsetFlux is the half-wave rectified first difference of an envelope.
// Peaks line up with note onsets.
func onsetFlux(env []float64) []float64 {
	if len(env) < 2 {
		return nil
	}
	flux := make([]float64, len(env)-1)
	for i := 1; i < len(env); i++ {
		d := env[i] - env[i-1]
		if d > 0 {
			flux[i-1] = d
		}
	}
	return flux
}

// autocorrAt computes the normalized autocorrelation of x at the given lag.
func autocorrAt(x []float64, lag int) float64 {
	if lag <= 0 || lag >= len(x) {
		return 0
	}
	var sum float64
	for i := lag; i < len(x); i++ {
		sum += x[i] * x[i-lag]
	}
	return sum / float64(len(x)-lag)
}

// goertzelPower evaluates the power of a single frequency bin over samples.
// Cheaper than a full FFT when only a sparse frequency grid is needed.
func goertzelPower(samples []float64, sampleRate int, freq float64) float64 {
	if len(samples) == 0 || sampleRate <= 0 {
		return 0
	}
	omega := 2 * math.Pi * freq / float64(sampleRate)
	coeff := 2 * math.Cos(omega)
	var s0, s1, s2 float64
	for _, x := range samples {
		s0 = x + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	power := s1*s1 + s2*s2 - coeff*s1*s2
	return power / float64(len(samples))
}

// zeroCrossRate is the fraction of adjacent sample pairs with a sign change.
func zeroCrossRate(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	var crossings int
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

func stddev(x []float64, mu float64) float64 {
	if len(x) < 2 {
		return 0
	}
	var sum float64
	for _, v := range x {
		d := v - mu
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(x)-1))
}

// pearson computes the Pearson correlation of two equal-length vectors.
func pearson(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	ma, mb := mean(a), mean(b)
	var num, da, db float64
	for i := range a {
		x := a[i] - ma
		y := b[i] - mb
		num += x * y
		da += x * x
		db += y * y
	}
	if da == 0 || db == 0 {
		return 0
	}
	return num / math.Sqrt(da*db)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
