package query

import (
	"encoding/base64"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/marcboeker/go-duckdb"
)

var integerPattern = regexp.MustCompile(`^-?\d+$`)

// Scrub converts a single engine value into a JSON-safe scalar.
//
// 64-bit and wider integers become float64, accepting precision loss above
// 2^53. Wrapped integer types whose text form is a plain integer are coerced
// the same way. DECIMAL values become float64. Byte slices become strings
// when they hold valid UTF-8 and standard base64 otherwise, as encoding/json
// would render them.
// Everything else passes through unchanged.
func Scrub(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case *big.Int:
		if x == nil {
			return nil
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	case big.Int:
		f, _ := new(big.Float).SetInt(&x).Float64()
		return f
	case duckdb.Decimal:
		return x.Float64()
	case *duckdb.Decimal:
		if x == nil {
			return nil
		}
		return x.Float64()
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		return base64.StdEncoding.EncodeToString(x)
	case fmt.Stringer:
		if s := x.String(); integerPattern.MatchString(s) {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
		return v
	default:
		return v
	}
}

// ScrubRow scrubs every value of a row in place and returns it.
func ScrubRow(row []any) []any {
	for i := range row {
		row[i] = Scrub(row[i])
	}
	return row
}
