package rqproc

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// OptimalFilter holds the precomputed frequency-domain machinery for one
// channel: the template spectrum and the inverse-PSD weights of the matched
// filter. The DC bin is excluded from all sums; the baseline carries it.
//
// An OptimalFilter is not safe for concurrent use. Each worker builds its own
// from the shared read-only TemplatePSD.
type OptimalFilter struct {
	n      int
	fs     float64
	fft    *fourier.FFT
	s      []complex128
	invPSD []float64
	denom  float64
}

func NewOptimalFilter(entry TemplatePSD, fs float64) (*OptimalFilter, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	if fs <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %g", fs)
	}

	n := len(entry.Template)
	fft := fourier.NewFFT(n)
	s := fft.Coefficients(nil, entry.Template)

	invPSD := make([]float64, len(entry.PSD))
	denom := 0.0
	for k := 1; k < len(entry.PSD); k++ {
		invPSD[k] = 1 / entry.PSD[k]
		denom += foldWeight(k, n) * (real(s[k])*real(s[k]) + imag(s[k])*imag(s[k])) * invPSD[k]
	}
	if denom <= 0 {
		return nil, fmt.Errorf("optimal filter normalization is not positive")
	}

	return &OptimalFilter{n: n, fs: fs, fft: fft, s: s, invPSD: invPSD, denom: denom}, nil
}

// foldWeight is the multiplicity of one-sided spectrum bin k when summing
// over the full spectrum of a length-n real sequence.
func foldWeight(k, n int) float64 {
	if k == 0 || (n%2 == 0 && k == n/2) {
		return 1
	}
	return 2
}

// FilterResult caches the per-trace quantities shared by the OF variants.
type FilterResult struct {
	of   *OptimalFilter
	v    []complex128
	amps []float64
	base float64
}

// Filter transforms one baseline-subtracted trace and evaluates the filter
// amplitude at every time-delay bin.
func (of *OptimalFilter) Filter(trace []float64) (*FilterResult, error) {
	if len(trace) != of.n {
		return nil, fmt.Errorf("trace length %d does not match template length %d", len(trace), of.n)
	}
	v := of.fft.Coefficients(nil, trace)

	q := make([]complex128, len(v))
	base := 0.0
	for k := 1; k < len(v); k++ {
		q[k] = cmplx.Conj(of.s[k]) * v[k] * complex(of.invPSD[k], 0)
		base += foldWeight(k, of.n) * (real(v[k])*real(v[k]) + imag(v[k])*imag(v[k])) * of.invPSD[k]
	}

	// Sequence folds the one-sided coefficients back into the time domain,
	// which is exactly the delay scan of the matched filter.
	amps := of.fft.Sequence(nil, q)
	for i := range amps {
		amps[i] /= of.denom
	}
	return &FilterResult{of: of, v: v, amps: amps, base: base}, nil
}

// AmpNoDelay is the optimal filter amplitude with the delay pinned to zero.
func (r *FilterResult) AmpNoDelay() float64 {
	return r.amps[0]
}

// BestDelay scans every allowed delay and returns the amplitude, the delay in
// seconds, and the fit chi-square at the optimum.
func (r *FilterResult) BestDelay() (amp, t0, chi2 float64) {
	best := 0
	for t := 1; t < len(r.amps); t++ {
		if r.amps[t]*r.amps[t] > r.amps[best]*r.amps[best] {
			best = t
		}
	}
	return r.delayResult(best)
}

// WindowDelay restricts the delay search to trace indices [win.Start,
// win.Stop) measured from the pre-trigger center bin.
func (r *FilterResult) WindowDelay(win Window) (amp, t0 float64) {
	center := r.of.n / 2
	best := -1
	var bestAmp2 float64
	for idx := win.Start; idx < win.Stop; idx++ {
		t := r.delayBin(idx - center)
		a2 := r.amps[t] * r.amps[t]
		if best < 0 || a2 > bestAmp2 {
			best, bestAmp2 = t, a2
		}
	}
	if best < 0 {
		return 0, 0
	}
	amp, t0, _ = r.delayResult(best)
	return amp, t0
}

// delayBin maps a signed delay in bins onto the circular amps index.
func (r *FilterResult) delayBin(d int) int {
	if d < 0 {
		return r.of.n + d
	}
	return d
}

func (r *FilterResult) delayResult(t int) (amp, t0, chi2 float64) {
	amp = r.amps[t]
	d := t
	if d > r.of.n/2 {
		d -= r.of.n
	}
	t0 = float64(d) / r.of.fs
	chi2 = r.base - amp*amp*r.of.denom
	return amp, t0, chi2
}

// Chi2LowFreq evaluates the fit chi-square using only frequency bins below
// fcutoff, with the supplied amplitude and delay.
func (r *FilterResult) Chi2LowFreq(amp, t0, fcutoff float64) float64 {
	of := r.of
	chi2 := 0.0
	for k := 1; k < len(r.v); k++ {
		freq := float64(k) * of.fs / float64(of.n)
		if freq > fcutoff {
			break
		}
		phase := cmplx.Exp(complex(0, -2*math.Pi*float64(k)*t0*of.fs/float64(of.n)))
		resid := r.v[k] - complex(amp, 0)*of.s[k]*phase
		chi2 += foldWeight(k, of.n) * (real(resid)*real(resid) + imag(resid)*imag(resid)) * of.invPSD[k]
	}
	return chi2
}

// ComputeChannelRQ evaluates every enabled RQ family for one trace in
// amperes. The optimal filter operates on the baseline-subtracted trace.
func ComputeChannelRQ(trace []float64, setup *RQSetup, of *OptimalFilter) (ChannelRQ, error) {
	if len(trace) != setup.TraceLength {
		return ChannelRQ{}, fmt.Errorf("trace length %d does not match setup trace length %d",
			len(trace), setup.TraceLength)
	}

	var rq ChannelRQ

	baseline := stat.Mean(trace[setup.BaselineWindow.Start:setup.BaselineWindow.Stop], nil)
	if setup.DoBaseline {
		rq.Baseline = baseline
	}

	bsub := make([]float64, len(trace))
	for i, v := range trace {
		bsub[i] = v - baseline
	}

	if setup.DoIntegral {
		w := setup.IntegralWindow
		rq.Integral = floats.Sum(bsub[w.Start:w.Stop]) / setup.SampleRate
	}
	if setup.DoMaxMin {
		w := setup.MaxMinWindow
		rq.MaxMin = floats.Max(bsub[w.Start:w.Stop]) - floats.Min(bsub[w.Start:w.Stop])
	}

	needOF := setup.DoOFAmp || setup.DoOFAmpNoDelay || setup.DoOFAmpWindow || setup.DoChi2LowFreq
	if !needOF {
		return rq, nil
	}
	if of == nil {
		return ChannelRQ{}, fmt.Errorf("optimal filter RQs enabled but no filter supplied")
	}

	result, err := of.Filter(bsub)
	if err != nil {
		return ChannelRQ{}, err
	}

	amp, t0, chi2 := result.BestDelay()
	if setup.DoOFAmp {
		rq.OFAmp = amp
		rq.OFTime = t0
		rq.Chi2 = chi2
	}
	if setup.DoOFAmpNoDelay {
		rq.OFAmpNoDelay = result.AmpNoDelay()
	}
	if setup.DoOFAmpWindow {
		rq.OFAmpWindow, rq.OFTimeWindow = result.WindowDelay(setup.OFWindow)
	}
	if setup.DoChi2LowFreq {
		rq.Chi2LowFreq = result.Chi2LowFreq(amp, t0, setup.Chi2FCutoff)
	}
	return rq, nil
}
