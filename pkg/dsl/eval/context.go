package eval

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Context binds attribute keys to numbers for one evaluation. Keys are
// dot-joined attribute paths such as "WS.Age". The evaluator never
// modifies a Context.
type Context map[string]float64

// Binding is the result of looking up an attribute.
type Binding struct {
	Value float64
	Found bool // false when the key was absent and Value is the default
}

// Lookup returns the binding for key. Absent keys resolve to zero with
// Found set to false.
func (c Context) Lookup(key string) Binding {
	if v, ok := c[key]; ok {
		return Binding{Value: v, Found: true}
	}
	return Binding{}
}

// Len returns the number of bound attributes.
func (c Context) Len() int {
	return len(c)
}

// ToFloat64 converts a dynamic value to a number. Booleans map to 1 and 0.
// Strings must hold a decimal number: hex floats and the spellings of
// infinity and NaN are rejected, while a decimal too large for float64
// becomes infinity, as a literal in rule text does.
func ToFloat64(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		return val.Float64()
	case string:
		s := strings.TrimSpace(val)
		if !isDecimal(s) {
			return 0, fmt.Errorf("cannot convert %q to a number", val)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("cannot convert %q to a number", val)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("cannot convert null to a number")
	default:
		return 0, fmt.Errorf("cannot convert %T to a number", v)
	}
}

// isDecimal reports whether s uses only the characters of a decimal
// number, which keeps "NaN", "Inf" and "0x1p3" out.
func isDecimal(s string) bool {
	return s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !strings.ContainsRune("0123456789+-.eE", r)
	}) < 0
}
