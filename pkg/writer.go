package rqproc

import (
	"errors"
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

// HDF5 row layouts. Field order defines the on-disk compound layout.

type eventRowHDF5 struct {
	series int64
	dump   int32
	event  int32
}

type channelRQHDF5 struct {
	baseline      float64
	integral      float64
	maxmin        float64
	ofamp         float64
	oft0          float64
	ofamp_nodelay float64
	ofamp_win     float64
	oft0_win      float64
	chi2          float64
	chi2_lowfreq  float64
}

type truthRowHDF5 struct {
	event     int32
	amplitude float64
	tdelay    float64
}

type ivRowHDF5 struct {
	channel    [STRLEN]byte
	series     int64
	qetbias    float64
	offset     float64
	offset_err float64
	rms        float64
	stationary int32
	cut_pass   int32
}

// RQWriter persists an RQ table: an "events" index table plus one RQ table
// per channel, all under the "RQ" group.
type RQWriter struct {
	File       *hdf5.File
	Filename   string
	RQGroup    *hdf5.Group
	EventTable *hdf5.Dataset
	ChanTables map[string]*hdf5.Dataset
	Channels   []string
	RowCounter int
}

func NewRQWriter(filename string, channels []string, detector string, compressionLevel int) (*RQWriter, error) {
	file, err := createFile(filename)
	if err != nil {
		return nil, err
	}
	group, err := createGroup(file, "RQ")
	if err != nil {
		file.Close()
		return nil, err
	}

	writer := &RQWriter{
		File:       file,
		Filename:   filename,
		RQGroup:    group,
		Channels:   channels,
		ChanTables: make(map[string]*hdf5.Dataset, len(channels)),
	}
	writer.EventTable, err = createTable(group, "events", eventRowHDF5{}, compressionLevel)
	if err != nil {
		file.Close()
		return nil, err
	}
	for _, ch := range channels {
		table, err := createTable(group, "rq_"+ch+detector, channelRQHDF5{}, compressionLevel)
		if err != nil {
			file.Close()
			return nil, err
		}
		writer.ChanTables[ch] = table
	}
	return writer, nil
}

func (w *RQWriter) WriteTable(table *RQTable) error {
	for _, row := range table.Rows {
		if err := w.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

func (w *RQWriter) WriteRow(row RQRow) error {
	entry := eventRowHDF5{
		series: int64(row.Series),
		dump:   int32(row.Dump),
		event:  int32(row.Event),
	}
	if err := writeEntryToTable(w.EventTable, entry, w.RowCounter); err != nil {
		return fmt.Errorf("writing event row to %q: %w", w.Filename, err)
	}
	for _, ch := range w.Channels {
		rq := row.Channels[ch]
		chanRow := channelRQHDF5{
			baseline:      rq.Baseline,
			integral:      rq.Integral,
			maxmin:        rq.MaxMin,
			ofamp:         rq.OFAmp,
			oft0:          rq.OFTime,
			ofamp_nodelay: rq.OFAmpNoDelay,
			ofamp_win:     rq.OFAmpWindow,
			oft0_win:      rq.OFTimeWindow,
			chi2:          rq.Chi2,
			chi2_lowfreq:  rq.Chi2LowFreq,
		}
		if err := writeEntryToTable(w.ChanTables[ch], chanRow, w.RowCounter); err != nil {
			return fmt.Errorf("writing channel %s row to %q: %w", ch, w.Filename, err)
		}
	}
	w.RowCounter++
	return nil
}

func (w *RQWriter) Close() error {
	var errs []error
	if err := w.EventTable.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing event table: %w", err))
	}
	for ch, table := range w.ChanTables {
		if err := table.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing channel %s table: %w", ch, err))
		}
	}
	if err := w.RQGroup.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing RQ group: %w", err))
	}
	if err := w.File.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing file: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SaveRQTable writes a single-series table to savepath with the next free
// version suffix. The version is allocated under a file lock held until the
// file is fully written, so concurrent runs cannot collide on a name.
func SaveRQTable(table *RQTable, savepath string, series uint64,
	channels []string, detector string, compressionLevel int) (string, error) {
	if err := EnsureDir(savepath); err != nil {
		return "", err
	}
	prefix := "rq_df_" + FormatSeriesNumber(series)
	version, lock, err := NextVersion(savepath, prefix)
	if err != nil {
		return "", err
	}
	defer lock.Unlock()

	filename := VersionedFileName(savepath, prefix, version)
	writer, err := NewRQWriter(filename, channels, detector, compressionLevel)
	if err != nil {
		return "", err
	}
	if err := writer.WriteTable(table); err != nil {
		writer.Close()
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	logInfo(fmt.Sprintf("Saved RQ table: %s (%d rows)", filename, table.Len()), "writer")
	return filename, nil
}

// ReadRQTable loads a persisted RQ table back into memory. Only the channels
// requested are read.
func ReadRQTable(filename string, channels []string, detector string) (*RQTable, error) {
	file, err := hdf5.OpenFile(filename, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	defer file.Close()

	group, err := file.OpenGroup("RQ")
	if err != nil {
		return nil, fmt.Errorf("opening RQ group in %q: %w", filename, err)
	}
	defer group.Close()

	events, err := readTable[eventRowHDF5](group, "events")
	if err != nil {
		return nil, fmt.Errorf("reading events table in %q: %w", filename, err)
	}

	perChannel := make(map[string][]channelRQHDF5, len(channels))
	for _, ch := range channels {
		rows, err := readTable[channelRQHDF5](group, "rq_"+ch+detector)
		if err != nil {
			return nil, fmt.Errorf("reading channel %s table in %q: %w", ch, filename, err)
		}
		if len(rows) != len(events) {
			return nil, fmt.Errorf("channel %s table in %q has %d rows, events table has %d",
				ch, filename, len(rows), len(events))
		}
		perChannel[ch] = rows
	}

	table := &RQTable{Rows: make([]RQRow, len(events))}
	for i, evt := range events {
		row := RQRow{
			Series:   uint64(evt.series),
			Dump:     int(evt.dump),
			Event:    int(evt.event),
			Channels: make(map[string]ChannelRQ, len(channels)),
		}
		for _, ch := range channels {
			r := perChannel[ch][i]
			row.Channels[ch] = ChannelRQ{
				Baseline:     r.baseline,
				Integral:     r.integral,
				MaxMin:       r.maxmin,
				OFAmp:        r.ofamp,
				OFTime:       r.oft0,
				OFAmpNoDelay: r.ofamp_nodelay,
				OFAmpWindow:  r.ofamp_win,
				OFTimeWindow: r.oft0_win,
				Chi2:         r.chi2,
				Chi2LowFreq:  r.chi2_lowfreq,
			}
		}
		table.Rows[i] = row
	}
	return table, nil
}

// TruthWriter records the drawn amplitude and time delay of every simulated
// pulse, one sidecar file per output dump.
type TruthWriter struct {
	File       *hdf5.File
	TruthTable *hdf5.Dataset
	RowCounter int
}

func NewTruthWriter(filename string, compressionLevel int) (*TruthWriter, error) {
	file, err := createFile(filename)
	if err != nil {
		return nil, err
	}
	group, err := createGroup(file, "Truth")
	if err != nil {
		file.Close()
		return nil, err
	}
	defer group.Close()

	table, err := createTable(group, "pulses", truthRowHDF5{}, 4)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &TruthWriter{File: file, TruthTable: table}, nil
}

func (w *TruthWriter) WritePulse(event int, amplitude, tdelay float64) error {
	row := truthRowHDF5{event: int32(event), amplitude: amplitude, tdelay: tdelay}
	if err := writeEntryToTable(w.TruthTable, row, w.RowCounter); err != nil {
		return err
	}
	w.RowCounter++
	return nil
}

func (w *TruthWriter) Close() error {
	var errs []error
	if err := w.TruthTable.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := w.File.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// IVWriter persists the consolidated sweep table, one row per sweep point
// and channel.
type IVWriter struct {
	File       *hdf5.File
	Group      *hdf5.Group
	Table      *hdf5.Dataset
	RowCounter int
}

func NewIVWriter(filename string, compressionLevel int) (*IVWriter, error) {
	file, err := createFile(filename)
	if err != nil {
		return nil, err
	}
	group, err := createGroup(file, "IV")
	if err != nil {
		file.Close()
		return nil, err
	}
	table, err := createTable(group, "sweep", ivRowHDF5{}, compressionLevel)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &IVWriter{File: file, Group: group, Table: table}, nil
}

func (w *IVWriter) WriteRecord(record IVRecord) error {
	row := ivRowHDF5{
		channel:    convertToHdf5String(record.Channel),
		series:     int64(record.Series),
		qetbias:    record.QetBias,
		offset:     record.Offset,
		offset_err: record.OffsetErr,
		rms:        record.RMS,
	}
	if record.Stationary {
		row.stationary = 1
	}
	if record.CutPass {
		row.cut_pass = 1
	}
	if err := writeEntryToTable(w.Table, row, w.RowCounter); err != nil {
		return err
	}
	w.RowCounter++
	return nil
}

func (w *IVWriter) Close() error {
	var errs []error
	if err := w.Table.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing sweep table: %w", err))
	}
	if err := w.Group.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing IV group: %w", err))
	}
	if err := w.File.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing file: %w", err))
	}
	return errors.Join(errs...)
}
