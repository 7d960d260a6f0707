package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JSONBMap maps a PostgreSQL JSONB column onto map[string]any.
// It implements sql.Scanner and driver.Valuer.
type JSONBMap map[string]any

// Scan implements the sql.Scanner interface.
func (j *JSONBMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for JSONBMap")
	}

	if len(data) == 0 {
		*j = JSONBMap{}
		return nil
	}

	return json.Unmarshal(data, j)
}

// Value implements the driver.Valuer interface.
func (j JSONBMap) Value() (driver.Value, error) {
	if len(j) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(j))
}

// Merge combines an existing metadata document with a newer one.
// Scalars from the newer document replace older values; array fields are
// unioned preserving order, existing elements first. Keys present only in
// the old document survive. Neither input is mutated.
func (j JSONBMap) Merge(newer JSONBMap) JSONBMap {
	merged := make(JSONBMap, len(j)+len(newer))
	for k, v := range j {
		merged[k] = v
	}
	for k, nv := range newer {
		ov, exists := merged[k]
		if !exists {
			merged[k] = nv
			continue
		}
		oldArr, oldIsArr := asAnySlice(ov)
		newArr, newIsArr := asAnySlice(nv)
		if oldIsArr && newIsArr {
			merged[k] = unionOrdered(oldArr, newArr)
			continue
		}
		merged[k] = nv
	}
	return merged
}

// unionOrdered appends elements of b not already present in a.
func unionOrdered(a, b []any) []any {
	out := make([]any, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, v := range a {
		key := scalarKey(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	for _, v := range b {
		key := scalarKey(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func asAnySlice(v any) ([]any, bool) {
	switch arr := v.(type) {
	case []any:
		return arr, true
	case []string:
		out := make([]any, len(arr))
		for i, s := range arr {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// scalarKey builds a comparable identity for union membership. JSON
// round-trips turn ints into float64, so numbers are keyed by value.
func scalarKey(v any) string {
	switch t := v.(type) {
	case string:
		return "s:" + t
	case float64:
		return fmt.Sprintf("f:%g", t)
	case int:
		return fmt.Sprintf("f:%g", float64(t))
	case bool:
		return fmt.Sprintf("b:%t", t)
	default:
		return fmt.Sprintf("x:%v", t)
	}
}
