package rqproc

import (
	"fmt"
	"time"
)

// BatchOptions configures one RQ batch run. Setup and Bundle are read-only
// once the run starts.
type BatchOptions struct {
	Channels   []string
	Detector   string
	Setup      *RQSetup
	Bundle     *TemplateBundle
	NumWorkers int
	MaxEvents  int
}

// ProcessRQ computes the enabled RQ families for every event of every dump in
// dumpPaths and returns one row per (series, dump, event), canonically
// sorted. Per-dump computation is independent, so the dumps are fanned out to
// NumWorkers workers; the merged table is identical for any worker count.
//
// An empty dump list yields an empty table. A dump that cannot be read or
// parsed aborts the whole run with the offending path in the error.
func ProcessRQ(dumpPaths []string, opts BatchOptions) (*RQTable, error) {
	table := &RQTable{}
	if len(dumpPaths) == 0 {
		return table, nil
	}
	if opts.Setup == nil || opts.Bundle == nil {
		return nil, fmt.Errorf("batch options missing setup or template bundle")
	}
	if opts.NumWorkers < 1 {
		opts.NumWorkers = 1
	}

	start := time.Now()

	jobs := make(chan WorkerData, len(dumpPaths))
	results := make(chan DumpResult, len(dumpPaths))

	for w := 1; w <= opts.NumWorkers; w++ {
		go rqWorker(w, jobs, results, opts)
	}
	for i, path := range dumpPaths {
		jobs <- WorkerData{DumpIndex: i, Path: path}
	}
	close(jobs)

	var firstErr error
	emptyDumps := 0
	for range dumpPaths {
		result := <-results
		if result.Err != nil {
			if firstErr == nil {
				firstErr = result.Err
			}
			continue
		}
		if result.NEvents == 0 {
			emptyDumps++
		}
		table.Append(result.Rows...)
		if configuration.Verbosity > 0 {
			logInfo(fmt.Sprintf("Processed dump %d/%d: %d events",
				result.DumpIndex+1, len(dumpPaths), result.NEvents), "process")
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	table.Sort()

	logInfo(fmt.Sprintf("Batch finished: %d rows from %d dumps (%d empty) in %d ms",
		table.Len(), len(dumpPaths), emptyDumps, time.Since(start).Milliseconds()), "process")
	return table, nil
}

// ProcessSeries enumerates the dump files of each series under basepath and
// processes them in one batch.
func ProcessSeries(basepath string, series []uint64, filetype string, opts BatchOptions) (*RQTable, error) {
	var paths []string
	for _, snum := range series {
		files, err := ListDumpFiles(basepath, snum, filetype)
		if err != nil {
			return nil, err
		}
		paths = append(paths, files...)
	}
	return ProcessRQ(paths, opts)
}
