package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// NormalizeKey converts a driver value to the canonical display string used
// by canonical records, stored rows and lookup keys.
//
// Rules:
//   - nil becomes "".
//   - time.Time becomes YYYY-MM-DD (datetimes keep only the date).
//   - bool and numbers use their plain string form.
//   - 16-byte arrays (Postgres uuid), and 16-byte slices that are not
//     UTF-8 text, use the canonical UUID form.
//   - maps and slices (JSON columns) become compact JSON.
//   - strings and []byte are whitespace-trimmed.
//
// Backends must not assume a particular underlying type; this helper keeps
// values consistent across backends.
func NormalizeKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		if len(t) == 16 && !utf8.Valid(t) {
			return uuid.UUID(t).String()
		}
		return strings.TrimSpace(string(t))
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	case *time.Time:
		if t == nil {
			return ""
		}
		return NormalizeKey(*t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case [16]byte:
		return uuid.UUID(t).String()
	case json.Number:
		return t.String()
	case driver.Valuer:
		inner, err := t.Value()
		if err != nil || inner == nil {
			return ""
		}
		if _, again := inner.(driver.Valuer); again {
			return strings.TrimSpace(fmt.Sprint(inner))
		}
		return NormalizeKey(inner)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return strings.TrimSpace(fmt.Sprint(v))
		}
		return string(b)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
