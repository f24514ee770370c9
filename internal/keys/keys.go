// Package keys derives stable deduplication keys from request content.
//
// Two submissions with the same content and the same parameter set must
// produce the same key regardless of parameter insertion order, so the
// parameters are normalized (maps recursively key-sorted) before hashing.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Derive computes the deduplication key for a request.
// It is a pure function: identical content and parameters always yield the
// same key, and it never fails.
func Derive(content string, params map[string]interface{}) string {
	normalized := normalizeParams(params)

	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte{0}) // separator so content/params boundaries can't collide
	h.Write(normalized)

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16]) // 128-bit key
}

// normalizeParams serializes params with sorted keys for consistent hashing
func normalizeParams(params map[string]interface{}) []byte {
	if len(params) == 0 {
		return []byte("{}")
	}

	result, err := json.Marshal(normalizeValue(params))
	if err != nil {
		// Unmarshalable params (channels, funcs) still need a stable key
		return []byte("{}")
	}
	return result
}

// normalizeValue recursively normalizes a parameter value
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return normalizeMap(val)
	case []interface{}:
		return normalizeArray(val)
	default:
		return val
	}
}

// normalizeMap normalizes a map by sorting keys
func normalizeMap(m map[string]interface{}) *sortedMap {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &sortedMap{keys: keys, values: m}
}

// normalizeArray normalizes an array element-wise
func normalizeArray(arr []interface{}) []interface{} {
	result := make([]interface{}, len(arr))
	for i, v := range arr {
		result[i] = normalizeValue(v)
	}
	return result
}

// sortedMap marshals its entries in key order.
// encoding/json already sorts map keys, but nested values still need
// normalization, so the two concerns are handled together here.
type sortedMap struct {
	keys   []string
	values map[string]interface{}
}

func (s *sortedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range s.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		valJSON, err := json.Marshal(normalizeValue(s.values[k]))
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		buf = append(buf, valJSON...)
	}
	return append(buf, '}'), nil
}
