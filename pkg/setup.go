package rqproc

import "fmt"

// Window is a half-open sample-index range [Start, Stop).
type Window struct {
	Start int
	Stop  int
}

// RQSetup enumerates which RQ families to compute and their numeric
// parameters. Built once via SetupBuilder, then passed read-only into the
// batch processor; it is safe to reuse unchanged across series and workers.
type RQSetup struct {
	TraceLength int
	SampleRate  float64

	DoBaseline     bool
	BaselineWindow Window

	DoIntegral     bool
	IntegralWindow Window

	DoMaxMin     bool
	MaxMinWindow Window

	DoOFAmp        bool
	DoOFAmpNoDelay bool

	DoOFAmpWindow bool
	OFWindow      Window

	DoChi2LowFreq bool
	Chi2FCutoff   float64
}

// SetupBuilder accumulates RQ adjustments, validating each one eagerly so
// that a bad window fails before any file I/O occurs.
//
// The default configuration enables every family: baseline over the first
// quarter of the trace, integral and max-min over the full trace, optimal
// filter with and without delay, a delay search constrained to the half
// trace around the pre-trigger point, and low-frequency chi-square cut off
// at fs/20.
type SetupBuilder struct {
	setup RQSetup
}

func NewSetupBuilder(traceLength int, fs float64) (*SetupBuilder, error) {
	if traceLength <= 0 {
		return nil, fmt.Errorf("trace length must be positive, got %d", traceLength)
	}
	if fs <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %g", fs)
	}
	center := traceLength / 2
	return &SetupBuilder{setup: RQSetup{
		TraceLength:    traceLength,
		SampleRate:     fs,
		DoBaseline:     true,
		BaselineWindow: Window{0, traceLength / 4},
		DoIntegral:     true,
		IntegralWindow: Window{0, traceLength},
		DoMaxMin:       true,
		MaxMinWindow:   Window{0, traceLength},
		DoOFAmp:        true,
		DoOFAmpNoDelay: true,
		DoOFAmpWindow:  true,
		OFWindow:       Window{center - traceLength/4, center + traceLength/4},
		DoChi2LowFreq:  true,
		Chi2FCutoff:    fs / 20,
	}}, nil
}

func (b *SetupBuilder) checkWindow(feature string, start, stop int) error {
	if start < 0 || start >= stop || stop > b.setup.TraceLength {
		return &ErrBadWindow{Feature: feature, Start: start, Stop: stop,
			TraceLength: b.setup.TraceLength}
	}
	return nil
}

func (b *SetupBuilder) AdjustBaseline(run bool, start, stop int) error {
	if run {
		if err := b.checkWindow("baseline", start, stop); err != nil {
			return err
		}
		b.setup.BaselineWindow = Window{start, stop}
	}
	b.setup.DoBaseline = run
	return nil
}

func (b *SetupBuilder) AdjustIntegral(run bool, start, stop int) error {
	if run {
		if err := b.checkWindow("integral", start, stop); err != nil {
			return err
		}
		b.setup.IntegralWindow = Window{start, stop}
	}
	b.setup.DoIntegral = run
	return nil
}

func (b *SetupBuilder) AdjustMaxMin(run bool, start, stop int) error {
	if run {
		if err := b.checkWindow("maxmin", start, stop); err != nil {
			return err
		}
		b.setup.MaxMinWindow = Window{start, stop}
	}
	b.setup.DoMaxMin = run
	return nil
}

// AdjustOFAmp toggles the unconstrained and no-delay optimal filter variants.
func (b *SetupBuilder) AdjustOFAmp(run bool, runNoDelay bool) {
	b.setup.DoOFAmp = run
	b.setup.DoOFAmpNoDelay = runNoDelay
}

// AdjustOFAmpWindow constrains the delay search to [start, stop) bins.
func (b *SetupBuilder) AdjustOFAmpWindow(run bool, start, stop int) error {
	if run {
		if err := b.checkWindow("ofamp window", start, stop); err != nil {
			return err
		}
		b.setup.OFWindow = Window{start, stop}
	}
	b.setup.DoOFAmpWindow = run
	return nil
}

// AdjustChi2LowFreq sets the chi-square cutoff frequency in Hz. The cutoff
// must lie strictly inside (0, fs/2].
func (b *SetupBuilder) AdjustChi2LowFreq(run bool, fcutoff float64) error {
	if run {
		if fcutoff <= 0 || fcutoff > b.setup.SampleRate/2 {
			return fmt.Errorf("chi2 cutoff %g Hz outside (0, %g]", fcutoff, b.setup.SampleRate/2)
		}
		b.setup.Chi2FCutoff = fcutoff
	}
	b.setup.DoChi2LowFreq = run
	return nil
}

// Build returns the finished, immutable setup.
func (b *SetupBuilder) Build() *RQSetup {
	setup := b.setup
	return &setup
}
