package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeLayout renders temporal values in the form DuckDB casts back without
// a format hint.
const timeLayout = "2006-01-02 15:04:05.999999"

// csvField renders one CSV field. Strings are always quoted, NULL is empty.
func csvField(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return `"` + strings.ReplaceAll(x, `"`, `""`) + `"`
	default:
		return scalar(x)
	}
}

// csvHeader quotes a column name only when RFC 4180 requires it, so plain
// headers stay bare.
func csvHeader(name string) string {
	if strings.ContainsAny(name, ",\"\r\n") || strings.TrimSpace(name) != name {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return name
}

// sqlLiteral renders one value for an INSERT statement.
func sqlLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case time.Time:
		return "'" + x.Format(timeLayout) + "'"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case float64, float32, int, int8, int16, int32, uint8, uint16, uint32:
		return scalar(x)
	default:
		return "'" + strings.ReplaceAll(scalar(x), "'", "''") + "'"
	}
}

func scalar(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(timeLayout)
	default:
		return fmt.Sprint(x)
	}
}
