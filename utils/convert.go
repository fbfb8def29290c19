package utils

import (
	"strconv"
	"strings"
)

func AnyToString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// AnyToInt accepts the numeric shapes a decoded JSON or shell value can take.
func AnyToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func AnyToBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
		return false, false
	default:
		if i, ok := AnyToInt(v); ok {
			return i != 0, true
		}
		return false, false
	}
}
