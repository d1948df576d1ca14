package export

import "errors"

// ErrNoTables is returned when there is nothing to export.
var ErrNoTables = errors.New("no tables to export")
