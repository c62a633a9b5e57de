package rqproc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSeriesNumber(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "12345678_9012", FormatSeriesNumber(123456789012))
	assert.Equal(t, "08010001_0001", FormatSeriesNumber(80100010001))
	assert.Equal(t, "00000000_0000", FormatSeriesNumber(0))
}

func TestDumpFileName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "08010001_0001_F0003.rqd", DumpFileName(80100010001, 3, "rqd"))
	assert.Equal(t, "08010001_0001_F0123.mid", DumpFileName(80100010001, 123, "mid"))
}

func TestListDumpFiles(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	const series = 80100010001

	for _, dumpNum := range []uint32{3, 1, 2} {
		writeTestDump(t, base, makeTestDump(series, dumpNum, 1, 8, 1))
	}

	files, err := ListDumpFiles(base, series, "rqd")
	require.NoError(t, err)
	require.Len(t, files, 3)
	for i, want := range []string{"F0001", "F0002", "F0003"} {
		assert.Contains(t, filepath.Base(files[i]), want, "files must be sorted")
	}

	_, err = ListDumpFiles(base, 99999999999, "rqd")
	var missing *ErrMissingDump
	assert.ErrorAs(t, err, &missing)
}

func TestNextVersion(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	const prefix = "rq_df_08010001_0001"

	version, lock, err := NextVersion(dir, prefix)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	require.NoError(t, lock.Unlock())

	for _, v := range []int{1, 2} {
		require.NoError(t, os.WriteFile(VersionedFileName(dir, prefix, v), nil, 0644))
	}

	version, lock, err = NextVersion(dir, prefix)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	require.NoError(t, lock.Unlock())
}

func TestVersionedFileName(t *testing.T) {
	t.Parallel()

	name := VersionedFileName("/data/rq", "rq_df_08010001_0001", 2)
	assert.Equal(t, filepath.Join("/data/rq", "rq_df_08010001_0001_v2.h5"), name)
}
