package rqproc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTestDump builds an in-memory dump with deterministic trace content.
func makeTestDump(series uint64, dumpNum uint32, nChannels, nSamples, nEvents int) *DumpFile {
	dump := &DumpFile{
		Header: FileHeaderStruct{
			Magic:        rawMagic,
			DumpNumber:   dumpNum,
			SeriesNumber: series,
			NChannels:    uint32(nChannels),
			NSamples:     uint32(nSamples),
			SampleRate:   testFs,
			ConvToAmps:   1e-9,
		},
	}
	for e := 0; e < nEvents; e++ {
		event := TraceEvent{
			EventNumber: uint32(e),
			TriggerType: 1,
			Timestamp:   uint64(1700000000 + e),
			Traces:      make([][]int16, nChannels),
		}
		for ch := 0; ch < nChannels; ch++ {
			trace := make([]int16, nSamples)
			for i := range trace {
				trace[i] = int16(100 + 7*e + 3*ch + i%5)
			}
			event.Traces[ch] = trace
		}
		dump.Events = append(dump.Events, event)
	}
	return dump
}

// writeTestDump writes a dump to the canonical location under basepath.
func writeTestDump(t *testing.T, basepath string, dump *DumpFile) string {
	t.Helper()
	dir := SeriesDir(basepath, dump.Header.SeriesNumber)
	require.NoError(t, EnsureDir(dir))
	path := filepath.Join(dir, DumpFileName(dump.Header.SeriesNumber, int(dump.Header.DumpNumber), "rqd"))
	require.NoError(t, WriteDumpFile(path, dump))
	return path
}

func TestDumpFileRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dump := makeTestDump(80100010001, 1, 2, 32, 3)

	first := filepath.Join(dir, "first.rqd")
	require.NoError(t, WriteDumpFile(first, dump))

	read, err := ReadDumpFile(first)
	require.NoError(t, err)
	assert.Equal(t, dump.Header, read.Header)
	require.Len(t, read.Events, 3)
	assert.Equal(t, dump.Events, read.Events)

	second := filepath.Join(dir, "second.rqd")
	require.NoError(t, WriteDumpFile(second, read))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b, "read-then-write must be byte identical")
}

func TestDumpFileRoundTripPreservesReservedBytes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dump := makeTestDump(80100010001, 1, 2, 32, 2)
	dump.Events[0].Reserved = 0xBEEF
	dump.Events[1].Reserved = 0x1234

	first := filepath.Join(dir, "first.rqd")
	require.NoError(t, WriteDumpFile(first, dump))

	read, err := ReadDumpFile(first)
	require.NoError(t, err)
	assert.EqualValues(t, 0xBEEF, read.Events[0].Reserved)
	assert.EqualValues(t, 0x1234, read.Events[1].Reserved)

	second := filepath.Join(dir, "second.rqd")
	require.NoError(t, WriteDumpFile(second, read))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b, "reserved header bytes must survive the round trip")
}

func TestReadDumpFileRejectsCorruptHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	t.Run("bad magic", func(t *testing.T) {
		t.Parallel()
		dump := makeTestDump(80100010001, 1, 1, 8, 1)
		path := filepath.Join(dir, "badmagic.rqd")
		require.NoError(t, WriteDumpFile(path, dump))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		raw[0] ^= 0xFF
		require.NoError(t, os.WriteFile(path, raw, 0644))

		_, err = ReadDumpFile(path)
		assert.ErrorContains(t, err, "bad magic")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := ReadDumpFile(filepath.Join(dir, "nope.rqd"))
		var openErr *ErrOpenFile
		assert.ErrorAs(t, err, &openErr)
	})

	t.Run("empty geometry", func(t *testing.T) {
		t.Parallel()
		dump := makeTestDump(80100010001, 1, 1, 8, 0)
		dump.Header.NChannels = 0
		path := filepath.Join(dir, "empty.rqd")
		require.NoError(t, WriteDumpFile(path, dump))

		_, err := ReadDumpFile(path)
		assert.ErrorContains(t, err, "empty trace geometry")
	})
}

func TestZeroEventDump(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dump := makeTestDump(80100010001, 1, 2, 16, 0)
	path := filepath.Join(dir, "zero.rqd")
	require.NoError(t, WriteDumpFile(path, dump))

	read, err := ReadDumpFile(path)
	require.NoError(t, err)
	assert.Empty(t, read.Events)
}

func TestTraceConversions(t *testing.T) {
	t.Parallel()

	t.Run("adc to amps", func(t *testing.T) {
		t.Parallel()
		amps := TraceInAmps([]int16{0, 100, -100}, 1e-9)
		assert.Equal(t, []float64{0, 1e-7, -1e-7}, amps)
	})

	t.Run("amps to adc rounds half away from zero", func(t *testing.T) {
		t.Parallel()
		adc := TraceToADC([]float64{0, 1.5e-9, -1.5e-9, 1.4e-9}, 1e-9)
		assert.Equal(t, []int16{0, 2, -2, 1}, adc)
	})

	t.Run("amps to adc clamps to int16", func(t *testing.T) {
		t.Parallel()
		adc := TraceToADC([]float64{1e-3, -1e-3}, 1e-9)
		assert.Equal(t, []int16{32767, -32768}, adc)
	})

	t.Run("round trip is exact for in-range values", func(t *testing.T) {
		t.Parallel()
		orig := []int16{-1234, 0, 1, 5678}
		back := TraceToADC(TraceInAmps(orig, 1e-9), 1e-9)
		assert.Equal(t, orig, back)
	})
}
