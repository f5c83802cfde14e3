package dataaccess

import "strconv"

// safeInt coerces v to an int, returning nil on any value that doesn't
// parse cleanly rather than raising — per the data-access layer's
// never-raise-on-bad-input contract.
func safeInt(v interface{}) *int {
	switch t := v.(type) {
	case nil:
		return nil
	case int:
		return &t
	case int64:
		r := int(t)
		return &r
	case float64:
		r := int(t)
		return &r
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

// safeFloat coerces v to a float64, returning nil on any value that
// doesn't parse cleanly.
func safeFloat(v interface{}) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return &t
	case float32:
		r := float64(t)
		return &r
	case int:
		r := float64(t)
		return &r
	case int64:
		r := float64(t)
		return &r
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
