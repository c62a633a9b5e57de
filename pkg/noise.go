package rqproc

import (
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

// TemplatePSD pairs a pulse template with its matched one-sided noise power
// spectral density. The PSD has length len(Template)/2+1.
type TemplatePSD struct {
	Template []float64
	PSD      []float64
}

// TemplateBundle holds the read-only template/PSD pairs for the channels of a
// run, keyed by channel+detector. Safe to share across workers.
type TemplateBundle struct {
	entries map[string]TemplatePSD
}

func bundleKey(channel, detector string) string {
	return channel + detector
}

// LoadTemplateBundle reads "template_<channel><detector>" and
// "psd_<channel><detector>" datasets for every requested channel. A missing
// dataset for a requested pair is a configuration error.
func LoadTemplateBundle(filename string, channels []string, detector string) (*TemplateBundle, error) {
	file, err := hdf5.OpenFile(filename, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	defer file.Close()

	bundle := &TemplateBundle{entries: make(map[string]TemplatePSD)}
	for _, ch := range channels {
		template, err := readFloatDataset(file, "template_"+ch+detector)
		if err != nil {
			return nil, &ErrMissingTemplate{Channel: ch, Detector: detector}
		}
		psd, err := readFloatDataset(file, "psd_"+ch+detector)
		if err != nil {
			return nil, &ErrMissingTemplate{Channel: ch, Detector: detector}
		}
		entry := TemplatePSD{Template: template, PSD: psd}
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("bundle entry %s%s: %w", ch, detector, err)
		}
		bundle.entries[bundleKey(ch, detector)] = entry
	}
	return bundle, nil
}

// NewTemplateBundle builds a bundle from in-memory pairs, used by the
// simulator and by tests.
func NewTemplateBundle() *TemplateBundle {
	return &TemplateBundle{entries: make(map[string]TemplatePSD)}
}

func (b *TemplateBundle) Set(channel, detector string, entry TemplatePSD) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("bundle entry %s%s: %w", channel, detector, err)
	}
	b.entries[bundleKey(channel, detector)] = entry
	return nil
}

func (b *TemplateBundle) Get(channel, detector string) (TemplatePSD, error) {
	entry, ok := b.entries[bundleKey(channel, detector)]
	if !ok {
		return TemplatePSD{}, &ErrMissingTemplate{Channel: channel, Detector: detector}
	}
	return entry, nil
}

func (e TemplatePSD) Validate() error {
	if len(e.Template) == 0 {
		return fmt.Errorf("empty template")
	}
	want := len(e.Template)/2 + 1
	if len(e.PSD) != want {
		return fmt.Errorf("psd length %d does not match template length %d (want %d)",
			len(e.PSD), len(e.Template), want)
	}
	for i, v := range e.PSD {
		// The DC bin may carry a zero from PSD folding; every other bin must
		// be usable as an inverse weight.
		if i > 0 && v <= 0 {
			return fmt.Errorf("psd bin %d is not positive: %g", i, v)
		}
	}
	return nil
}

func readFloatDataset(file *hdf5.File, name string) ([]float64, error) {
	dset, err := file.OpenDataset(name)
	if err != nil {
		return nil, err
	}
	defer dset.Close()

	space := dset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, err
	}
	n := uint(1)
	for _, d := range dims {
		n *= d
	}

	data := make([]float64, n)
	if err := dset.Read(&data); err != nil {
		return nil, err
	}
	return data, nil
}
