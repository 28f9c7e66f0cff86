package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EncodeValue serializes a computed feature value for storage. Composite
// values (maps, slices) are stored as JSON text; scalars are stored as their
// plain text representation. Nil encodes as JSON null so it survives a
// round trip through DecodeValue.
func EncodeValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case json.Number:
		return val.String(), nil
	case map[string]any, []any:
		encoded, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("failed to encode composite value: %w", err)
		}
		return string(encoded), nil
	default:
		// Uncommon scalar shapes (e.g. float32 from decoded payloads) get
		// the JSON representation, which is still a plain scalar literal.
		encoded, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("failed to encode value of type %T: %w", v, err)
		}
		return string(encoded), nil
	}
}

// DecodeValue deserializes a stored feature value. It attempts structured
// JSON decoding first and falls back to the raw stored text verbatim, so
// composite values round-trip and plain scalars degrade gracefully to
// strings.
func DecodeValue(stored string) any {
	var decoded any
	if err := json.Unmarshal([]byte(stored), &decoded); err != nil {
		return stored
	}
	return decoded
}
