package rqproc

import "fmt"

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error { return e.Err }

// ErrMissingDump reports a dump file that could not be located for a series.
type ErrMissingDump struct {
	Series uint64
	Dump   int
	Err    error
}

func (e *ErrMissingDump) Error() string {
	return fmt.Sprintf("series %012d dump F%04d: %v", e.Series, e.Dump, e.Err)
}

func (e *ErrMissingDump) Unwrap() error { return e.Err }

// ErrMissingTemplate reports a channel/detector pair with no template or PSD
// entry in the bundle.
type ErrMissingTemplate struct {
	Channel  string
	Detector string
}

func (e *ErrMissingTemplate) Error() string {
	return fmt.Sprintf("no template/psd entry for channel %q detector %q", e.Channel, e.Detector)
}

// ErrBadWindow reports an invalid index window supplied to the setup builder.
type ErrBadWindow struct {
	Feature     string
	Start, Stop int
	TraceLength int
}

func (e *ErrBadWindow) Error() string {
	return fmt.Sprintf("invalid window [%d, %d) for %s: trace length %d",
		e.Start, e.Stop, e.Feature, e.TraceLength)
}

// ErrBadDistribution reports malformed random-generation parameters.
type ErrBadDistribution struct {
	Name   string
	Family string
	Reason string
}

func (e *ErrBadDistribution) Error() string {
	return fmt.Sprintf("invalid %s distribution for parameter %q: %s", e.Family, e.Name, e.Reason)
}

// ErrCreateGroup represents an error when creating an HDF5 group.
type ErrCreateGroup struct {
	GroupName string
	Err       error
}

func (e *ErrCreateGroup) Error() string {
	return fmt.Sprintf("error creating group %q: %v", e.GroupName, e.Err)
}

func (e *ErrCreateGroup) Unwrap() error { return e.Err }

// ErrCreateTable represents an error when creating an HDF5 table.
type ErrCreateTable struct {
	TableName string
	Err       error
}

func (e *ErrCreateTable) Error() string {
	return fmt.Sprintf("error creating table %q: %v", e.TableName, e.Err)
}

func (e *ErrCreateTable) Unwrap() error { return e.Err }
