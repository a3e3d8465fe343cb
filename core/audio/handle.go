package audio

import "math"

// Handle is the normalized in-memory form of a decoded audio file. All
// analysis stages consume a Handle and must never mutate it. Samples are a
// mono downmix in [-1, 1]; Channels keeps the source channel count.
type Handle struct {
	Samples    []float64
	SampleRate int
	Channels   int
}

// Duration returns the audio duration in seconds.
func (h *Handle) Duration() float64 {
	if h.SampleRate <= 0 {
		return 0
	}
	return float64(len(h.Samples)) / float64(h.SampleRate)
}

// Peak returns the largest absolute sample value.
func (h *Handle) Peak() float64 {
	var peak float64
	for _, s := range h.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}
