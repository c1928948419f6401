package spreadsheet

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseValue attempts to parse a cell as a number. Values that would lose
// information as numbers (leading zeros, a leading plus sign, more than 15
// significant digits) stay strings.
func ParseValue(s string) any {
	if s == "" || !looksNumeric(s) {
		return s
	}
	// Try integer first
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	// Try float
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func looksNumeric(s string) bool {
	if s != strings.TrimSpace(s) || strings.HasPrefix(s, "+") {
		return false
	}
	digits := strings.TrimPrefix(s, "-")
	if len(digits) > 1 && digits[0] == '0' && digits[1] != '.' {
		return false
	}
	significant := 0
	for _, r := range digits {
		switch {
		case r >= '0' && r <= '9':
			significant++
		case r == '.' || r == 'e' || r == 'E' || r == '-' || r == '+':
		default:
			return false
		}
	}
	return significant > 0 && significant <= 15
}

// String renders a cell value the way it is compared and displayed.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
