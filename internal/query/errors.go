package query

import (
	"fmt"
	"strings"
)

// maxErrorSQL bounds the SQL text carried in error messages.
const maxErrorSQL = 200

// QueryExecutionError is returned when the engine rejects a statement. The
// engine's message is preserved and the statement is appended, shortened.
type QueryExecutionError struct {
	SQL string
	Err error
}

func (e *QueryExecutionError) Error() string {
	if e.SQL == "" {
		return fmt.Sprintf("query failed: %v", e.Err)
	}
	return fmt.Sprintf("query failed: %v [sql: %s]", e.Err, shortSQL(e.SQL))
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// shortSQL collapses whitespace and truncates to maxErrorSQL runes.
func shortSQL(sql string) string {
	s := strings.Join(strings.Fields(sql), " ")
	if r := []rune(s); len(r) > maxErrorSQL {
		return string(r[:maxErrorSQL]) + "..."
	}
	return s
}
