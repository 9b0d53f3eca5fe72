package snapshot

import (
	"fmt"
	"strings"
	"time"
)

// Literal renders one row value as a SQL literal. Null values become NULL,
// numeric and boolean values keep their native literal form, temporal values
// become single-quoted ISO-8601 text, and everything else becomes single-quoted
// text with embedded single quotes doubled. No other escaping is performed;
// quoted values may safely contain statement terminators.
func Literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32, float64:
		return fmt.Sprintf("%v", val)
	case time.Time:
		return quote(val.Format(time.RFC3339Nano))
	case string:
		return quote(val)
	case []byte:
		return quote(string(val))
	default:
		return quote(fmt.Sprintf("%v", val))
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
