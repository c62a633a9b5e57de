package rqproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFs = 625e3

// compactTemplate has support well inside the trace, so shifting it by a few
// bins is indistinguishable from a circular shift and the filter results are
// exact.
func compactTemplate(n int) []float64 {
	template := make([]float64, n)
	center := n / 2
	template[center] = 1
	template[center+1] = 0.6
	template[center+2] = 0.3
	return template
}

func flatPSD(n int) []float64 {
	psd := make([]float64, n/2+1)
	for i := range psd {
		psd[i] = 1
	}
	return psd
}

func testFilter(t *testing.T, n int) *OptimalFilter {
	t.Helper()
	entry := TemplatePSD{Template: compactTemplate(n), PSD: flatPSD(n)}
	of, err := NewOptimalFilter(entry, testFs)
	require.NoError(t, err)
	return of
}

func TestNewOptimalFilterValidation(t *testing.T) {
	t.Parallel()

	_, err := NewOptimalFilter(TemplatePSD{}, testFs)
	assert.Error(t, err, "empty template")

	entry := TemplatePSD{Template: compactTemplate(64), PSD: flatPSD(32)}
	_, err = NewOptimalFilter(entry, testFs)
	assert.Error(t, err, "psd length mismatch")

	psd := flatPSD(64)
	psd[3] = -1
	_, err = NewOptimalFilter(TemplatePSD{Template: compactTemplate(64), PSD: psd}, testFs)
	assert.Error(t, err, "negative psd bin")

	_, err = NewOptimalFilter(TemplatePSD{Template: compactTemplate(64), PSD: flatPSD(64)}, 0)
	assert.Error(t, err, "bad sample rate")
}

func TestOptimalFilterRecoversAmplitude(t *testing.T) {
	t.Parallel()

	const n = 64
	const a0 = 3e-7
	of := testFilter(t, n)

	trace := make([]float64, n)
	ScaleInto(trace, compactTemplate(n), a0)

	result, err := of.Filter(trace)
	require.NoError(t, err)

	assert.InDelta(t, a0, result.AmpNoDelay(), 1e-15)

	amp, t0, chi2 := result.BestDelay()
	assert.InDelta(t, a0, amp, 1e-15)
	assert.InDelta(t, 0, t0, 1e-15)
	assert.InDelta(t, 0, chi2, 1e-12)
}

func TestOptimalFilterFindsDelay(t *testing.T) {
	t.Parallel()

	const n = 64
	const a0 = 3e-7
	of := testFilter(t, n)

	t.Run("positive delay", func(t *testing.T) {
		t.Parallel()
		trace := make([]float64, n)
		ScaleInto(trace, Shift(compactTemplate(n), 5), a0)

		result, err := of.Filter(trace)
		require.NoError(t, err)

		amp, t0, chi2 := result.BestDelay()
		assert.InDelta(t, a0, amp, 1e-15)
		assert.InDelta(t, 5.0/testFs, t0, 1e-12)
		assert.InDelta(t, 0, chi2, 1e-12)
	})

	t.Run("negative delay", func(t *testing.T) {
		t.Parallel()
		trace := make([]float64, n)
		ScaleInto(trace, Shift(compactTemplate(n), -5), a0)

		result, err := of.Filter(trace)
		require.NoError(t, err)

		amp, t0, _ := result.BestDelay()
		assert.InDelta(t, a0, amp, 1e-15)
		assert.InDelta(t, -5.0/testFs, t0, 1e-12)
	})

	t.Run("window search finds the same optimum", func(t *testing.T) {
		t.Parallel()
		trace := make([]float64, n)
		ScaleInto(trace, Shift(compactTemplate(n), 5), a0)

		result, err := of.Filter(trace)
		require.NoError(t, err)

		amp, t0 := result.WindowDelay(Window{n/2 - 10, n/2 + 10})
		assert.InDelta(t, a0, amp, 1e-15)
		assert.InDelta(t, 5.0/testFs, t0, 1e-12)
	})
}

func TestFilterRejectsWrongLength(t *testing.T) {
	t.Parallel()

	of := testFilter(t, 64)
	_, err := of.Filter(make([]float64, 32))
	assert.Error(t, err)
}

func TestChi2LowFreqVanishesOnPerfectFit(t *testing.T) {
	t.Parallel()

	const n = 64
	const a0 = 3e-7
	of := testFilter(t, n)

	trace := make([]float64, n)
	ScaleInto(trace, compactTemplate(n), a0)

	result, err := of.Filter(trace)
	require.NoError(t, err)

	amp, t0, _ := result.BestDelay()
	chi2 := result.Chi2LowFreq(amp, t0, testFs/20)
	assert.InDelta(t, 0, chi2, 1e-12)
}

func TestComputeChannelRQ(t *testing.T) {
	t.Parallel()

	const n = 64
	const a0 = 3e-7
	const offset = 1e-8

	of := testFilter(t, n)
	builder, err := NewSetupBuilder(n, testFs)
	require.NoError(t, err)
	setup := builder.Build()

	trace := make([]float64, n)
	for i := range trace {
		trace[i] = offset
	}
	ScaleInto(trace, compactTemplate(n), a0)

	rq, err := ComputeChannelRQ(trace, setup, of)
	require.NoError(t, err)

	assert.InDelta(t, offset, rq.Baseline, 1e-18)
	assert.InDelta(t, a0*(1+0.6+0.3)/testFs, rq.Integral, 1e-18)
	assert.InDelta(t, a0, rq.MaxMin, 1e-15)
	assert.InDelta(t, a0, rq.OFAmp, 1e-15)
	assert.InDelta(t, 0, rq.OFTime, 1e-15)
	assert.InDelta(t, a0, rq.OFAmpNoDelay, 1e-15)
	assert.InDelta(t, a0, rq.OFAmpWindow, 1e-15)
	assert.InDelta(t, 0, rq.Chi2, 1e-12)
	assert.InDelta(t, 0, rq.Chi2LowFreq, 1e-12)
}

func TestComputeChannelRQErrors(t *testing.T) {
	t.Parallel()

	builder, err := NewSetupBuilder(64, testFs)
	require.NoError(t, err)
	setup := builder.Build()

	_, err = ComputeChannelRQ(make([]float64, 32), setup, testFilter(t, 64))
	assert.Error(t, err, "length mismatch")

	_, err = ComputeChannelRQ(make([]float64, 64), setup, nil)
	assert.Error(t, err, "OF enabled without a filter")
}
