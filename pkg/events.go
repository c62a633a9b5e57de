package rqproc

import (
	"sort"

	"golang.org/x/exp/maps"
)

// ChannelRQ holds the reduced quantities computed for one channel of one event.
// Which fields are populated depends on the RQSetup used for the run.
type ChannelRQ struct {
	Baseline     float64
	Integral     float64
	MaxMin       float64
	OFAmp        float64
	OFTime       float64
	OFAmpNoDelay float64
	OFAmpWindow  float64
	OFTimeWindow float64
	Chi2         float64
	Chi2LowFreq  float64
}

// RQRow is one detected event in one dump of a series.
type RQRow struct {
	Series   uint64
	Dump     int
	Event    int
	Channels map[string]ChannelRQ
}

// RQTable accumulates one row per (series, dump, event). Row order carries no
// meaning; Sort restores the canonical order after a parallel merge.
type RQTable struct {
	Rows []RQRow
}

func (t *RQTable) Len() int {
	return len(t.Rows)
}

func (t *RQTable) Append(rows ...RQRow) {
	t.Rows = append(t.Rows, rows...)
}

// Sort orders rows canonically by (series, dump, event).
func (t *RQTable) Sort() {
	sort.Slice(t.Rows, func(i, j int) bool {
		a, b := t.Rows[i], t.Rows[j]
		if a.Series != b.Series {
			return a.Series < b.Series
		}
		if a.Dump != b.Dump {
			return a.Dump < b.Dump
		}
		return a.Event < b.Event
	})
}

// SeriesNumbers returns the distinct series identifiers present in the table,
// in ascending order.
func (t *RQTable) SeriesNumbers() []uint64 {
	seen := make(map[uint64]bool)
	for _, row := range t.Rows {
		seen[row.Series] = true
	}
	out := maps.Keys(seen)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
