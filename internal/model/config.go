package model

// Config is the opaque per-source settings bag. Readers pull out the
// keys they understand with the typed accessors below; unknown keys are
// ignored so callers can carry extra metadata through untouched.
type Config map[string]any

// String returns the value for key as a string, or def when the key is
// absent, not a string, or empty.
func (c Config) String(key, def string) string {
	v, ok := c[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return s
}

// Int returns the value for key as an int. JSON decoding yields float64
// for numbers, so both forms are accepted.
func (c Config) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Rune returns the first rune of the string value for key, or def when
// absent or empty. Used for delimiter settings.
func (c Config) Rune(key string, def rune) rune {
	s := c.String(key, "")
	if s == "" {
		return def
	}
	return []rune(s)[0]
}

// Bytes returns inline payload bytes stored under key, accepting either
// a []byte or a string value. Nil when absent.
func (c Config) Bytes(key string) []byte {
	switch v := c[key].(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return nil
	}
}
