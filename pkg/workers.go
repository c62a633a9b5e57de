package rqproc

import "fmt"

type WorkerData struct {
	DumpIndex int
	Path      string
}

type DumpResult struct {
	DumpIndex int
	Rows      []RQRow
	NEvents   int
	Err       error
}

// rqWorker processes whole dumps: one job per dump file, one result per job.
// Each worker owns its optimal filters since the FFT plans are not safe for
// concurrent use; the setup and bundle are shared read-only.
func rqWorker(id int, jobs <-chan WorkerData, results chan<- DumpResult, opts BatchOptions) {
	filters := make(map[string]*OptimalFilter)
	for _, ch := range opts.Channels {
		entry, err := opts.Bundle.Get(ch, opts.Detector)
		if err != nil {
			for job := range jobs {
				results <- DumpResult{DumpIndex: job.DumpIndex, Err: err}
			}
			return
		}
		of, err := NewOptimalFilter(entry, opts.Setup.SampleRate)
		if err != nil {
			for job := range jobs {
				results <- DumpResult{DumpIndex: job.DumpIndex, Err: err}
			}
			return
		}
		filters[ch] = of
	}

	for job := range jobs {
		rows, nEvents, err := processDump(job.Path, opts, filters)
		if err != nil {
			err = fmt.Errorf("worker %d: %w", id, err)
		}
		results <- DumpResult{DumpIndex: job.DumpIndex, Rows: rows, NEvents: nEvents, Err: err}
	}
}

func processDump(path string, opts BatchOptions, filters map[string]*OptimalFilter) ([]RQRow, int, error) {
	dump, err := ReadDumpFile(path)
	if err != nil {
		return nil, 0, err
	}
	if int(dump.Header.NChannels) < len(opts.Channels) {
		return nil, 0, fmt.Errorf("dump %q has %d channels, %d requested",
			path, dump.Header.NChannels, len(opts.Channels))
	}

	events := dump.Events
	if opts.MaxEvents > 0 && len(events) > opts.MaxEvents {
		events = events[:opts.MaxEvents]
	}

	rows := make([]RQRow, 0, len(events))
	for _, event := range events {
		row := RQRow{
			Series:   dump.Header.SeriesNumber,
			Dump:     int(dump.Header.DumpNumber),
			Event:    int(event.EventNumber),
			Channels: make(map[string]ChannelRQ, len(opts.Channels)),
		}
		for chIdx, ch := range opts.Channels {
			trace := TraceInAmps(event.Traces[chIdx], dump.Header.ConvToAmps)
			rq, err := ComputeChannelRQ(trace, opts.Setup, filters[ch])
			if err != nil {
				return nil, 0, fmt.Errorf("dump %q event %d channel %s: %w",
					path, event.EventNumber, ch, err)
			}
			row.Channels[ch] = rq
		}
		rows = append(rows, row)
	}
	return rows, len(events), nil
}
