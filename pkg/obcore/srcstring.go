package obcore

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// GetSourceString serialises a JSON-like value (strings, numbers, booleans,
// []interface{}, map[string]interface{}) into the canonical form used for
// hashing. Scalars are prefixed with a type tag, object keys are visited in
// sorted order and all components are joined with a NUL byte, so two
// structurally equal values always produce the same string.
func GetSourceString(value interface{}) string {
	var components []string
	extractComponents(value, &components)
	return strings.Join(components, "\x00")
}

func extractComponents(value interface{}, components *[]string) {
	switch v := value.(type) {
	case string:
		*components = append(*components, "s", v)
	case bool:
		*components = append(*components, "b", strconv.FormatBool(v))
	case int:
		*components = append(*components, "n", strconv.FormatInt(int64(v), 10))
	case int64:
		*components = append(*components, "n", strconv.FormatInt(v, 10))
	case uint32:
		*components = append(*components, "n", strconv.FormatUint(uint64(v), 10))
	case uint64:
		*components = append(*components, "n", strconv.FormatUint(v, 10))
	case float64:
		*components = append(*components, "n", strconv.FormatFloat(v, 'f', -1, 64))
	case []interface{}:
		*components = append(*components, "[")
		for _, item := range v {
			extractComponents(item, components)
		}
		*components = append(*components, "]")
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v[k] == nil {
				continue
			}
			*components = append(*components, k)
			extractComponents(v[k], components)
		}
	default:
		panic(fmt.Sprintf("obcore: unsupported value type %T in source string", value))
	}
}

// GetLength returns the byte cost of a JSON-like value under the ledger's
// size accounting: strings cost their length, numbers 8, booleans 1, and
// containers the sum of their members (object keys included).
func GetLength(value interface{}) int {
	switch v := value.(type) {
	case nil:
		return 0
	case string:
		return len(v)
	case bool:
		return 1
	case int, int64, uint32, uint64, float64:
		return 8
	case []interface{}:
		total := 0
		for _, item := range v {
			total += GetLength(item)
		}
		return total
	case map[string]interface{}:
		total := 0
		for k, item := range v {
			if item == nil {
				continue
			}
			total += len(k) + GetLength(item)
		}
		return total
	default:
		panic(fmt.Sprintf("obcore: unsupported value type %T in length", value))
	}
}
