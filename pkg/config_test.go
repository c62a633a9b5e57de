package rqproc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfiguration(t *testing.T) {
	t.Parallel()

	t.Run("json overrides defaults", func(t *testing.T) {
		t.Parallel()
		content := `{
			"base_path": "/data/raw",
			"save_path": "/data/rq",
			"series": [80100010001],
			"channels": ["A", "B"],
			"detector": "Z1",
			"num_workers": 8,
			"seed": 1234,
			"amplitudes": {"family": "gaussian", "params": [2e-7, 5e-8]}
		}`
		file := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(file, []byte(content), 0644))

		config, err := LoadConfiguration(file)
		require.NoError(t, err)

		assert.Equal(t, "/data/raw", config.BasePath)
		assert.Equal(t, []uint64{80100010001}, config.Series)
		assert.Equal(t, []string{"A", "B"}, config.Channels)
		assert.Equal(t, 8, config.NumWorkers)
		assert.EqualValues(t, 1234, config.Seed)
		assert.Equal(t, "gaussian", config.Amplitudes.Family)

		// Untouched fields keep their defaults.
		assert.Equal(t, "rqd", config.FileType)
		assert.InDelta(t, 625e3, config.SampleRate, 1e-9)
		assert.Equal(t, 4, config.CompressionLevel)
		assert.True(t, config.SaveRQ)
		assert.Equal(t, "gaussian", config.TimeDelays.Family)
		assert.Equal(t, []float64{0, 16e-6}, config.TimeDelays.Params)
	})

	t.Run("missing file returns defaults and an error", func(t *testing.T) {
		t.Parallel()
		config, err := LoadConfiguration("/does/not/exist.json")
		assert.Error(t, err)
		assert.Equal(t, 1, config.NumWorkers)
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()
		file := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(file, []byte("{nope"), 0644))
		_, err := LoadConfiguration(file)
		assert.Error(t, err)
	})
}
