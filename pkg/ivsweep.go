package rqproc

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// IVRecord holds the summary of one sweep point for one channel.
type IVRecord struct {
	Channel    string
	Series     uint64
	QetBias    float64
	Offset     float64
	OffsetErr  float64
	RMS        float64
	Stationary bool
	CutPass    bool
}

// SweepOptions configures one IV/dIdV sweep reduction.
type SweepOptions struct {
	Channels []string
	FileType string

	// dIdV traces carry a driving signal, so the stationarity check is
	// skipped for them. HV sweeps record the bias with inverted sign.
	IsDidv bool
	IsHV   bool
}

// ProcessIVSweep reduces a directory of sweep files, one raw dump per bias
// point, into per-channel records. Files are visited in lexicographic order
// and the result is canonically sorted, so the output is identical across
// runs over unchanged inputs.
func ProcessIVSweep(sweepPath string, opts SweepOptions) ([]IVRecord, error) {
	if opts.FileType == "" {
		opts.FileType = "rqd"
	}
	pattern := filepath.Join(sweepPath, "*."+opts.FileType)
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no sweep files matching %q", pattern)
	}
	sort.Strings(files)

	var records []IVRecord
	for _, file := range files {
		dump, err := ReadDumpFile(file)
		if err != nil {
			return nil, err
		}
		if int(dump.Header.NChannels) < len(opts.Channels) {
			return nil, fmt.Errorf("sweep file %q has %d channels, %d requested",
				file, dump.Header.NChannels, len(opts.Channels))
		}
		if len(dump.Events) == 0 {
			logInfo(fmt.Sprintf("Skipping empty sweep file %s", file), "ivsweep")
			continue
		}

		qetbias := dump.Header.QetBias
		if opts.IsHV {
			qetbias = -qetbias
		}

		for chIdx, ch := range opts.Channels {
			record := reduceSweepPoint(dump, chIdx, opts.IsDidv)
			record.Channel = ch
			record.Series = dump.Header.SeriesNumber
			record.QetBias = qetbias
			records = append(records, record)
		}
		if configuration.Verbosity > 0 {
			logInfo(fmt.Sprintf("Sweep point %s: bias %g uA, %d events",
				filepath.Base(file), qetbias*1e6, len(dump.Events)), "ivsweep")
		}
	}

	SortIVRecords(records)
	logInfo(fmt.Sprintf("Sweep reduced: %d records from %d files", len(records), len(files)), "ivsweep")
	return records, nil
}

// reduceSweepPoint computes the per-channel summary of one bias point. An
// iterative two-sigma cut on per-event means rejects events with pile-up or
// baseline jumps before the statistics are taken.
func reduceSweepPoint(dump *DumpFile, chIdx int, isDidv bool) IVRecord {
	nEvents := len(dump.Events)
	means := make([]float64, nEvents)
	traces := make([][]float64, nEvents)
	for i, event := range dump.Events {
		traces[i] = TraceInAmps(event.Traces[chIdx], dump.Header.ConvToAmps)
		means[i] = stat.Mean(traces[i], nil)
	}

	pass := iterStatCut(means, 2, 20)
	nPass := 0
	for _, p := range pass {
		if p {
			nPass++
		}
	}

	record := IVRecord{
		CutPass: nPass > 0 && 2*nPass >= nEvents,
	}
	if nPass == 0 {
		return record
	}

	passingMeans := make([]float64, 0, nPass)
	var samples []float64
	var firstHalf, secondHalf []float64
	for i, p := range pass {
		if !p {
			continue
		}
		passingMeans = append(passingMeans, means[i])
		samples = append(samples, traces[i]...)
		half := len(traces[i]) / 2
		firstHalf = append(firstHalf, traces[i][:half]...)
		secondHalf = append(secondHalf, traces[i][half:]...)
	}

	record.Offset = stat.Mean(passingMeans, nil)
	if nPass > 1 {
		record.OffsetErr = stat.StdDev(passingMeans, nil) / math.Sqrt(float64(nPass))
	}
	if len(samples) > 1 {
		record.RMS = stat.StdDev(samples, nil)
	}

	if isDidv {
		// Driven traces are periodic, not stationary; the check would
		// always fail on them.
		record.Stationary = true
	} else {
		drift := stat.Mean(secondHalf, nil) - stat.Mean(firstHalf, nil)
		tolerance := 3 * record.RMS * math.Sqrt(2/float64(len(samples)))
		record.Stationary = math.Abs(drift) <= tolerance
	}
	return record
}

// iterStatCut marks the values within cut sigma of the mean, recomputing mean
// and sigma over the survivors until the selection stops changing.
func iterStatCut(vals []float64, cut float64, maxIter int) []bool {
	pass := make([]bool, len(vals))
	for i := range pass {
		pass[i] = true
	}

	for iter := 0; iter < maxIter; iter++ {
		var kept []float64
		for i, v := range vals {
			if pass[i] {
				kept = append(kept, v)
			}
		}
		if len(kept) < 2 {
			break
		}
		mean := stat.Mean(kept, nil)
		sigma := stat.StdDev(kept, nil)
		if sigma == 0 {
			break
		}

		changed := false
		for i, v := range vals {
			keep := math.Abs(v-mean) <= cut*sigma
			if keep != pass[i] {
				pass[i] = keep
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return pass
}

// CheckBiasPairs verifies that every bias point of every channel occurs
// exactly twice, once on the downward leg of the sweep and once on the
// upward leg.
func CheckBiasPairs(records []IVRecord) error {
	type key struct {
		channel string
		qetbias float64
	}
	counts := make(map[key]int)
	for _, r := range records {
		counts[key{r.Channel, r.QetBias}]++
	}
	for k, n := range counts {
		if n != 2 {
			return fmt.Errorf("channel %s bias %g occurs %d times, want 2", k.channel, k.qetbias, n)
		}
	}
	return nil
}

// RemoveBadRecords drops sweep points that failed the event cut, were not
// stationary, or carry a degenerate offset error. Returns the survivors and
// the number removed.
func RemoveBadRecords(records []IVRecord) ([]IVRecord, int) {
	kept := make([]IVRecord, 0, len(records))
	for _, r := range records {
		if !r.CutPass || !r.Stationary || r.OffsetErr == 0 {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(records) - len(kept)
}

// SortIVRecords orders sweep records canonically by channel, bias, series.
func SortIVRecords(records []IVRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Channel != records[j].Channel {
			return records[i].Channel < records[j].Channel
		}
		if records[i].QetBias != records[j].QetBias {
			return records[i].QetBias < records[j].QetBias
		}
		return records[i].Series < records[j].Series
	})
}

// SaveIVRecords persists the consolidated sweep table.
func SaveIVRecords(records []IVRecord, filename string, compressionLevel int) error {
	writer, err := NewIVWriter(filename, compressionLevel)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := writer.WriteRecord(r); err != nil {
			writer.Close()
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}
	logInfo(fmt.Sprintf("Saved sweep table: %s (%d records)", filename, len(records)), "ivsweep")
	return nil
}
