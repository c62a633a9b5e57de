package rqproc

import (
	"fmt"
	"math"
)

// MakeTemplate builds an idealized detector pulse as a double exponential
// with the given rise and fall time constants (seconds). The pulse onset sits
// on the center bin and the peak is normalized to 1. The result is immutable
// by convention and shared read-only across per-series processing.
func MakeTemplate(riseTime, fallTime, fs float64, nSamples int) ([]float64, error) {
	if riseTime <= 0 || fallTime <= 0 {
		return nil, fmt.Errorf("template time constants must be positive, got rise=%g fall=%g", riseTime, fallTime)
	}
	if fallTime <= riseTime {
		return nil, fmt.Errorf("template fall time %g must exceed rise time %g", fallTime, riseTime)
	}
	if fs <= 0 || nSamples <= 0 {
		return nil, fmt.Errorf("invalid template geometry: fs=%g nSamples=%d", fs, nSamples)
	}

	template := make([]float64, nSamples)
	offset := nSamples / 2
	peak := 0.0
	for i := offset; i < nSamples; i++ {
		t := float64(i-offset) / fs
		v := math.Exp(-t/fallTime) - math.Exp(-t/riseTime)
		template[i] = v
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return nil, fmt.Errorf("degenerate template: zero peak")
	}
	for i := range template {
		template[i] /= peak
	}
	return template, nil
}

// Shift displaces a trace by a possibly fractional number of bins, linearly
// interpolating between neighbours. Samples shifted in from outside the trace
// are zero: out-of-bounds shifts clip rather than wrap.
func Shift(trace []float64, shiftBins float64) []float64 {
	n := len(trace)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		pos := float64(i) - shiftBins
		lo := math.Floor(pos)
		w := pos - lo
		var a, b float64
		if idx := int(lo); idx >= 0 && idx < n {
			a = trace[idx]
		}
		if idx := int(lo) + 1; idx >= 0 && idx < n {
			b = trace[idx]
		}
		out[i] = (1-w)*a + w*b
	}
	return out
}

// ScaleInto adds amplitude*template into dst, in place.
func ScaleInto(dst []float64, template []float64, amplitude float64) {
	for i := range dst {
		if i < len(template) {
			dst[i] += amplitude * template[i]
		}
	}
}
