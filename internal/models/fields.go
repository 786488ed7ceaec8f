package models

import "time"

// Fields is the plain key-value shape every persisted document takes.
type Fields = map[string]interface{}

func getString(m Fields, k string) string {
	s, _ := m[k].(string)
	return s
}

func getBool(m Fields, k string) bool {
	b, _ := m[k].(bool)
	return b
}

func getFloat(m Fields, k string) float64 {
	switch v := m[k].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func getFloatPtr(m Fields, k string) *float64 {
	if _, ok := m[k]; !ok || m[k] == nil {
		return nil
	}
	f := getFloat(m, k)
	return &f
}

func getInt(m Fields, k string) int {
	return int(getFloat(m, k))
}

func getFloats(m Fields, k string) []float64 {
	switch v := m[k].(type) {
	case []float64:
		out := make([]float64, len(v))
		copy(out, v)
		return out
	case []interface{}:
		out := make([]float64, 0, len(v))
		for _, x := range v {
			out = append(out, getFloat(Fields{"x": x}, "x"))
		}
		return out
	}
	return nil
}

// Timestamp renders t the way every document stores time: RFC 3339 in UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp accepts RFC 3339 with or without a zone suffix.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.UTC)
}
