package query

import (
	"fmt"
	"strings"
)

// opaqueRendering is what builder objects from the browser coordinator
// render as when they carry no SQL.
const opaqueRendering = "[object Object]"

// Query carries explicit SQL.
type Query struct {
	SQL string `json:"sql"`
}

// SQLer is implemented by query builders that expose their SQL directly.
type SQLer interface {
	SQL() string
}

// ResolveSQL extracts SQL text from a query-like value. ok is false when the
// value carries nothing to execute.
//
// Strings are used verbatim. Other values are tried in order: their String
// rendering unless it is empty or opaque, then an explicit SQL field (a Query,
// a "sql" map key, or an SQL() method).
func ResolveSQL(q any) (sql string, ok bool) {
	switch v := q.(type) {
	case nil:
		return "", false
	case string:
		return nonEmpty(v)
	case Query:
		return nonEmpty(v.SQL)
	case *Query:
		if v == nil {
			return "", false
		}
		return nonEmpty(v.SQL)
	}

	if s, ok := q.(fmt.Stringer); ok {
		if rendered := s.String(); rendered != "" && rendered != opaqueRendering {
			return nonEmpty(rendered)
		}
	}

	switch v := q.(type) {
	case SQLer:
		return nonEmpty(v.SQL())
	case map[string]any:
		if s, ok := v["sql"].(string); ok {
			return nonEmpty(s)
		}
	case map[string]string:
		return nonEmpty(v["sql"])
	}

	return "", false
}

func nonEmpty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}
