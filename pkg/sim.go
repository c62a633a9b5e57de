package rqproc

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// PulseSim injects simulated pulses into raw dump files. Templates are added
// in amperes and peak-normalized; amplitudes and time delays are drawn per
// selected event from configurable distributions. All draws come from a
// single seeded source, so a fixed seed reproduces the output bit for bit.
type PulseSim struct {
	templates [][]float64
	relcal    []float64
	src       rand.Source
	amps      distuv.Rander
	tdelays   distuv.Rander
}

// NewPulseSim builds a simulator around a primary pulse template. The default
// draws are uniform amplitudes on [0, 6e-7) A and gaussian time delays with a
// 16 us sigma.
func NewPulseSim(template []float64, seed uint64) *PulseSim {
	src := rand.NewSource(seed)
	return &PulseSim{
		templates: [][]float64{template},
		src:       src,
		amps:      distuv.Uniform{Min: 0, Max: 6e-7, Src: src},
		tdelays:   distuv.Normal{Mu: 0, Sigma: 16e-6, Src: src},
	}
}

// AddTemplate registers an extra template. Every template gets its own
// amplitude draw per event; the time delay is shared.
func (p *PulseSim) AddTemplate(template []float64) {
	p.templates = append(p.templates, template)
}

// SetRelCal installs per-channel relative calibration factors. The factor of
// the injected channel scales every drawn amplitude.
func (p *PulseSim) SetRelCal(relcal []float64) {
	p.relcal = relcal
}

// ConfigureParameter replaces the distribution of a drawn quantity. Valid
// names are "amplitudes" and "tdelays"; valid families are "gaussian" with
// params (mean, sigma) and "uniform" with params (min, max). Parameters are
// validated here, not at draw time, and reconfiguring a name overwrites the
// previous setting.
func (p *PulseSim) ConfigureParameter(name string, family string, params []float64) error {
	if name != "amplitudes" && name != "tdelays" {
		return &ErrBadDistribution{Name: name, Family: family, Reason: "unknown parameter name"}
	}

	var rander distuv.Rander
	switch family {
	case "gaussian":
		if len(params) != 2 {
			return &ErrBadDistribution{Name: name, Family: family,
				Reason: fmt.Sprintf("want 2 params (mean, sigma), got %d", len(params))}
		}
		if params[1] <= 0 {
			return &ErrBadDistribution{Name: name, Family: family,
				Reason: fmt.Sprintf("sigma must be positive, got %g", params[1])}
		}
		rander = distuv.Normal{Mu: params[0], Sigma: params[1], Src: p.src}
	case "uniform":
		if len(params) != 2 {
			return &ErrBadDistribution{Name: name, Family: family,
				Reason: fmt.Sprintf("want 2 params (min, max), got %d", len(params))}
		}
		if params[0] >= params[1] {
			return &ErrBadDistribution{Name: name, Family: family,
				Reason: fmt.Sprintf("min %g must be below max %g", params[0], params[1])}
		}
		rander = distuv.Uniform{Min: params[0], Max: params[1], Src: p.src}
	default:
		return &ErrBadDistribution{Name: name, Family: family, Reason: "unknown family"}
	}

	if name == "amplitudes" {
		p.amps = rander
	} else {
		p.tdelays = rander
	}
	return nil
}

// SimOptions describes one simulation run over a single series.
type SimOptions struct {
	BasePath  string
	OutputDir string
	FileType  string
	Series    uint64
	Channel   string   // channel receiving the injected pulses
	Channels  []string // channel order in the dump files

	// Table and Mask select the events to inject into. Mask is aligned
	// index-for-index with Table rows; a nil Table selects every event.
	Table *RQTable
	Mask  []bool

	TruthSidecar     bool
	CompressionLevel int
}

// Run rewrites every dump of the series into OutputDir, injecting one
// simulated pulse per selected event into the chosen channel. Events outside
// the selection are copied through untouched, so an empty selection
// reproduces the input files byte for byte.
func (p *PulseSim) Run(opts SimOptions) error {
	chIdx := -1
	for i, ch := range opts.Channels {
		if ch == opts.Channel {
			chIdx = i
		}
	}
	if chIdx < 0 {
		return fmt.Errorf("channel %q not among dump channels %v", opts.Channel, opts.Channels)
	}
	if p.relcal != nil && chIdx >= len(p.relcal) {
		return fmt.Errorf("relcal has %d entries, channel index is %d", len(p.relcal), chIdx)
	}

	selected, err := buildSelection(opts.Table, opts.Mask, opts.Series)
	if err != nil {
		return err
	}

	outDir := SeriesDir(opts.OutputDir, opts.Series)
	if err := EnsureDir(outDir); err != nil {
		return err
	}

	files, err := ListDumpFiles(opts.BasePath, opts.Series, opts.FileType)
	if err != nil {
		return err
	}

	injected := 0
	for _, file := range files {
		n, err := p.simulateDump(file, outDir, chIdx, selected, opts)
		if err != nil {
			return err
		}
		injected += n
	}
	logInfo(fmt.Sprintf("Simulated series %s: %d pulses over %d dumps",
		FormatSeriesNumber(opts.Series), injected, len(files)), "sim")
	return nil
}

// buildSelection turns the mask into a (dump, event) lookup. A nil predicate
// means every event is selected.
func buildSelection(table *RQTable, mask []bool, series uint64) (map[[2]int]bool, error) {
	if table == nil {
		if mask != nil {
			return nil, fmt.Errorf("selection mask given without an RQ table")
		}
		return nil, nil
	}
	if mask != nil && len(mask) != table.Len() {
		return nil, fmt.Errorf("mask has %d entries, RQ table has %d rows", len(mask), table.Len())
	}

	selected := make(map[[2]int]bool, table.Len())
	for i, row := range table.Rows {
		if row.Series != series {
			return nil, fmt.Errorf("RQ table mixes series %012d and %012d; simulate one series at a time",
				series, row.Series)
		}
		if mask == nil || mask[i] {
			selected[[2]int{row.Dump, row.Event}] = true
		}
	}
	return selected, nil
}

func (p *PulseSim) simulateDump(file string, outDir string, chIdx int,
	selected map[[2]int]bool, opts SimOptions) (int, error) {
	dump, err := ReadDumpFile(file)
	if err != nil {
		return 0, err
	}
	if chIdx >= int(dump.Header.NChannels) {
		return 0, fmt.Errorf("dump %q has %d channels, channel index %d requested",
			file, dump.Header.NChannels, chIdx)
	}

	var truth *TruthWriter
	if opts.TruthSidecar {
		truthName := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)) + "_truth.h5"
		truth, err = NewTruthWriter(filepath.Join(outDir, truthName), opts.CompressionLevel)
		if err != nil {
			return 0, err
		}
		defer truth.Close()
	}

	scale := 1.0
	if p.relcal != nil {
		scale = p.relcal[chIdx]
	}
	fs := dump.Header.SampleRate

	injected := 0
	for i := range dump.Events {
		event := &dump.Events[i]
		if selected != nil && !selected[[2]int{int(dump.Header.DumpNumber), int(event.EventNumber)}] {
			continue
		}

		amps := make([]float64, len(p.templates))
		for t := range p.templates {
			amps[t] = scale * p.amps.Rand()
		}
		tdelay := p.tdelays.Rand()

		trace := TraceInAmps(event.Traces[chIdx], dump.Header.ConvToAmps)
		for t, template := range p.templates {
			ScaleInto(trace, Shift(template, tdelay*fs), amps[t])
		}
		event.Traces[chIdx] = TraceToADC(trace, dump.Header.ConvToAmps)
		injected++

		if truth != nil {
			truthEvent := int(dump.Header.DumpNumber)*10000 + i
			for t := range p.templates {
				if err := truth.WritePulse(truthEvent, amps[t], tdelay); err != nil {
					return injected, err
				}
			}
		}
	}

	if err := WriteDumpFile(filepath.Join(outDir, filepath.Base(file)), dump); err != nil {
		return injected, err
	}
	return injected, nil
}
