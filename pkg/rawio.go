package rqproc

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Raw dump files hold one acquisition sub-file of a series: a file header
// followed by fixed-size events, each an event header plus NChannels*NSamples
// little-endian int16 ADC samples (channel-major).

const rawMagic uint32 = 0x44515200 // "RQD\0"

type FileHeaderStruct struct {
	Magic        uint32
	DumpNumber   uint32
	SeriesNumber uint64
	NChannels    uint32
	NSamples     uint32
	SampleRate   float64
	ConvToAmps   float64
	QetBias      float64
}

type EventHeaderStruct struct {
	EventNumber uint32
	TriggerType uint16
	Reserved    uint16
	Timestamp   uint64
}

type TraceEvent struct {
	EventNumber uint32
	TriggerType uint16
	Reserved    uint16
	Timestamp   uint64
	Traces      [][]int16
}

type DumpFile struct {
	Header FileHeaderStruct
	Events []TraceEvent
}

// ReadDumpFile loads a complete raw dump into memory.
func ReadDumpFile(filename string) (*DumpFile, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	defer file.Close()

	reader := bufio.NewReader(file)

	var header FileHeaderStruct
	if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("reading file header of %q: %w", filename, err)
	}
	if header.Magic != rawMagic {
		return nil, fmt.Errorf("file %q: bad magic %#x", filename, header.Magic)
	}
	if header.NChannels == 0 || header.NSamples == 0 {
		return nil, fmt.Errorf("file %q: empty trace geometry", filename)
	}

	dump := &DumpFile{Header: header}
	for {
		event, err := readEvent(reader, header)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading event %d of %q: %w", len(dump.Events), filename, err)
		}
		dump.Events = append(dump.Events, event)
	}
	return dump, nil
}

func readEvent(reader io.Reader, header FileHeaderStruct) (TraceEvent, error) {
	var evtHeader EventHeaderStruct
	if err := binary.Read(reader, binary.LittleEndian, &evtHeader); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return TraceEvent{}, io.EOF
		}
		return TraceEvent{}, err
	}

	event := TraceEvent{
		EventNumber: evtHeader.EventNumber,
		TriggerType: evtHeader.TriggerType,
		Reserved:    evtHeader.Reserved,
		Timestamp:   evtHeader.Timestamp,
		Traces:      make([][]int16, header.NChannels),
	}
	for ch := range event.Traces {
		trace := make([]int16, header.NSamples)
		if err := binary.Read(reader, binary.LittleEndian, &trace); err != nil {
			return TraceEvent{}, err
		}
		event.Traces[ch] = trace
	}
	return event, nil
}

// WriteDumpFile serializes a dump. Reading a file and writing it back
// unmodified reproduces the input byte for byte.
func WriteDumpFile(filename string, dump *DumpFile) error {
	file, err := os.Create(filename)
	if err != nil {
		return &ErrOpenFile{Filename: filename, Err: err}
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	header := dump.Header
	header.Magic = rawMagic
	if err := binary.Write(writer, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("writing file header of %q: %w", filename, err)
	}

	for i, event := range dump.Events {
		evtHeader := EventHeaderStruct{
			EventNumber: event.EventNumber,
			TriggerType: event.TriggerType,
			Reserved:    event.Reserved,
			Timestamp:   event.Timestamp,
		}
		if err := binary.Write(writer, binary.LittleEndian, &evtHeader); err != nil {
			return fmt.Errorf("writing event %d of %q: %w", i, filename, err)
		}
		for _, trace := range event.Traces {
			if err := binary.Write(writer, binary.LittleEndian, trace); err != nil {
				return fmt.Errorf("writing event %d of %q: %w", i, filename, err)
			}
		}
	}
	return writer.Flush()
}

// TraceInAmps converts one channel of an event from ADC bins to amperes.
func TraceInAmps(trace []int16, convToAmps float64) []float64 {
	out := make([]float64, len(trace))
	for i, v := range trace {
		out[i] = float64(v) * convToAmps
	}
	return out
}

// TraceToADC converts a trace in amperes back to ADC bins, rounding to the
// nearest bin and clamping to the int16 range.
func TraceToADC(trace []float64, convToAmps float64) []int16 {
	out := make([]int16, len(trace))
	for i, v := range trace {
		bins := v / convToAmps
		switch {
		case bins >= 32767:
			out[i] = 32767
		case bins <= -32768:
			out[i] = -32768
		case bins >= 0:
			out[i] = int16(bins + 0.5)
		default:
			out[i] = int16(bins - 0.5)
		}
	}
	return out
}
