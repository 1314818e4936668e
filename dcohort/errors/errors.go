package errors

import "fmt"

// ConfigurationError covers anything wrong before processing starts:
// missing reference files, invalid target years, nonexistent input paths.
// Fatal, no retry.
type ConfigurationError struct {
	Err error
	Msg string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Msg, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// DataFormatError indicates upstream data corruption: malformed dates,
// missing required columns, negative time deltas. Aborts processing of the
// offending file rather than skipping records silently.
type DataFormatError struct {
	Err  error
	File string
	Msg  string
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("data format error in %s: %s: %s", e.File, e.Msg, e.Err)
}

func (e *DataFormatError) Unwrap() error {
	return e.Err
}

// WorkerFailureError is raised when any shard of a parallel scan fails.
// The whole file's scan is abandoned; no partial cohort is emitted.
type WorkerFailureError struct {
	Err   error
	File  string
	Shard int
}

func (e *WorkerFailureError) Error() string {
	return fmt.Sprintf("worker shard %d failed scanning %s: %s", e.Shard, e.File, e.Err)
}

func (e *WorkerFailureError) Unwrap() error {
	return e.Err
}
