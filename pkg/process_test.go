package rqproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSamples  = 64
	testDetector = "Z1"
)

var testChannels = []string{"A", "B"}

func testBundle(t *testing.T) *TemplateBundle {
	t.Helper()
	bundle := NewTemplateBundle()
	entry := TemplatePSD{Template: compactTemplate(testSamples), PSD: flatPSD(testSamples)}
	for _, ch := range testChannels {
		require.NoError(t, bundle.Set(ch, testDetector, entry))
	}
	return bundle
}

func testBatchOptions(t *testing.T, numWorkers int) BatchOptions {
	t.Helper()
	builder, err := NewSetupBuilder(testSamples, testFs)
	require.NoError(t, err)
	return BatchOptions{
		Channels:   testChannels,
		Detector:   testDetector,
		Setup:      builder.Build(),
		Bundle:     testBundle(t),
		NumWorkers: numWorkers,
	}
}

func TestProcessRQ(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	const series = 80100010001
	var paths []string
	for dumpNum := uint32(1); dumpNum <= 4; dumpNum++ {
		dump := makeTestDump(series, dumpNum, len(testChannels), testSamples, 5)
		paths = append(paths, writeTestDump(t, base, dump))
	}

	t.Run("result is identical for any worker count", func(t *testing.T) {
		t.Parallel()
		serial, err := ProcessRQ(paths, testBatchOptions(t, 1))
		require.NoError(t, err)
		parallel, err := ProcessRQ(paths, testBatchOptions(t, 4))
		require.NoError(t, err)
		assert.Equal(t, serial.Rows, parallel.Rows)
	})

	t.Run("rows come back canonically ordered with unique keys", func(t *testing.T) {
		t.Parallel()
		table, err := ProcessRQ(paths, testBatchOptions(t, 3))
		require.NoError(t, err)
		require.Equal(t, 20, table.Len())

		seen := make(map[[3]int]bool)
		for i, row := range table.Rows {
			assert.EqualValues(t, series, row.Series)
			key := [3]int{int(row.Series), row.Dump, row.Event}
			assert.False(t, seen[key], "duplicate key %v", key)
			seen[key] = true
			if i > 0 {
				prev := table.Rows[i-1]
				less := prev.Dump < row.Dump || (prev.Dump == row.Dump && prev.Event < row.Event)
				assert.True(t, less, "row %d out of order", i)
			}
			assert.Len(t, row.Channels, len(testChannels))
		}
	})

	t.Run("max events caps each dump", func(t *testing.T) {
		t.Parallel()
		opts := testBatchOptions(t, 2)
		opts.MaxEvents = 2
		table, err := ProcessRQ(paths, opts)
		require.NoError(t, err)
		assert.Equal(t, 8, table.Len())
	})

	t.Run("empty dump list yields an empty table", func(t *testing.T) {
		t.Parallel()
		table, err := ProcessRQ(nil, testBatchOptions(t, 2))
		require.NoError(t, err)
		assert.Zero(t, table.Len())
	})

	t.Run("unreadable dump aborts the run", func(t *testing.T) {
		t.Parallel()
		bad := append([]string{}, paths...)
		bad = append(bad, base+"/missing.rqd")
		_, err := ProcessRQ(bad, testBatchOptions(t, 2))
		assert.Error(t, err)
	})

	t.Run("missing bundle entry fails every job", func(t *testing.T) {
		t.Parallel()
		opts := testBatchOptions(t, 2)
		opts.Channels = []string{"A", "C"}
		_, err := ProcessRQ(paths, opts)
		var missing *ErrMissingTemplate
		assert.ErrorAs(t, err, &missing)
	})
}

func TestProcessSeries(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	seriesList := []uint64{80100010001, 80100010002}
	for _, snum := range seriesList {
		for dumpNum := uint32(1); dumpNum <= 2; dumpNum++ {
			writeTestDump(t, base, makeTestDump(snum, dumpNum, len(testChannels), testSamples, 3))
		}
	}

	table, err := ProcessSeries(base, seriesList, "rqd", testBatchOptions(t, 2))
	require.NoError(t, err)
	assert.Equal(t, 12, table.Len())
	assert.Equal(t, seriesList, table.SeriesNumbers())

	_, err = ProcessSeries(base, []uint64{123}, "rqd", testBatchOptions(t, 2))
	var missing *ErrMissingDump
	assert.ErrorAs(t, err, &missing)
}

func TestRQTableSort(t *testing.T) {
	t.Parallel()

	table := &RQTable{}
	table.Append(
		RQRow{Series: 2, Dump: 1, Event: 0},
		RQRow{Series: 1, Dump: 2, Event: 5},
		RQRow{Series: 1, Dump: 2, Event: 1},
		RQRow{Series: 1, Dump: 1, Event: 9},
	)
	table.Sort()

	want := []RQRow{
		{Series: 1, Dump: 1, Event: 9},
		{Series: 1, Dump: 2, Event: 1},
		{Series: 1, Dump: 2, Event: 5},
		{Series: 2, Dump: 1, Event: 0},
	}
	assert.Equal(t, want, table.Rows)
	assert.Equal(t, []uint64{1, 2}, table.SeriesNumbers())
}
