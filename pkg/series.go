package rqproc

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"
)

// FormatSeriesNumber reformats a 12-digit series id as "{first8}_{last4}",
// the directory and file prefix convention of the acquisition system.
func FormatSeriesNumber(series uint64) string {
	s := fmt.Sprintf("%012d", series)
	return s[:8] + "_" + s[8:]
}

// DumpFileName builds the file name for one dump of a series.
func DumpFileName(series uint64, dump int, filetype string) string {
	return fmt.Sprintf("%s_F%04d.%s", FormatSeriesNumber(series), dump, filetype)
}

// SeriesDir returns the directory holding the dump files of a series.
func SeriesDir(basepath string, series uint64) string {
	return filepath.Join(basepath, FormatSeriesNumber(series))
}

// ListDumpFiles enumerates the dump files of a series in lexicographic order.
// The order is stable across runs over unchanged inputs.
func ListDumpFiles(basepath string, series uint64, filetype string) ([]string, error) {
	pattern := filepath.Join(SeriesDir(basepath, series),
		fmt.Sprintf("%s_F*.%s", FormatSeriesNumber(series), filetype))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &ErrMissingDump{Series: series, Dump: 1,
			Err: fmt.Errorf("no files matching %q", pattern)}
	}
	sort.Strings(files)
	return files, nil
}

// NextVersion allocates the version suffix for a new RQ file by counting the
// files already matching the prefix. The count-then-write sequence is racy on
// its own, so the whole allocation runs under a file lock in the save
// directory; callers must hold the returned lock until the file is written.
func NextVersion(savepath string, prefix string) (int, *flock.Flock, error) {
	lock := flock.New(filepath.Join(savepath, "."+prefix+".lock"))
	if err := lock.Lock(); err != nil {
		return 0, nil, fmt.Errorf("locking version counter: %w", err)
	}

	pattern := filepath.Join(savepath, prefix+"_v*.h5")
	files, err := filepath.Glob(pattern)
	if err != nil {
		lock.Unlock()
		return 0, nil, err
	}
	return len(files) + 1, lock, nil
}

// VersionedFileName builds "rq_df_<snum>_v<N>.h5" style names.
func VersionedFileName(savepath string, prefix string, version int) string {
	return filepath.Join(savepath, fmt.Sprintf("%s_v%d.h5", prefix, version))
}

// EnsureDir creates a directory if it does not exist yet.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
