package ingest

import "fmt"

// UnsupportedFormatError is returned for files without a known decoder.
type UnsupportedFormatError struct {
	File string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %s", e.File)
}

// IngestionError is returned when the engine cannot decode or load a file.
// The engine's message is preserved.
type IngestionError struct {
	Table string
	File  string
	Err   error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("failed to ingest %s into %s: %v", e.File, e.Table, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}
