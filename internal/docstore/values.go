package docstore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Loose-typed accessors for document fields. Stored data comes back as
// interface{} maps whose concrete types differ between backends (the BSON
// decoder produces primitive.DateTime and primitive.A); these normalize the
// handful of kinds the services read.

// AsString returns v as a string, or "".
func AsString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// AsFloat returns v as a float64, or 0.
func AsFloat(v interface{}) float64 {
	f, _ := toFloat(v)
	return f
}

// AsInt returns v as an int, or 0.
func AsInt(v interface{}) int {
	f, ok := toFloat(v)
	if !ok {
		return 0
	}
	return int(f)
}

// AsTime returns v as a time.Time, or the zero time.
func AsTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case primitive.DateTime:
		return t.Time().UTC()
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	default:
		return time.Time{}
	}
}

// AsSlice returns v as a []interface{}, or nil.
func AsSlice(v interface{}) []interface{} {
	switch s := v.(type) {
	case []interface{}:
		return s
	case primitive.A:
		return []interface{}(s)
	default:
		return nil
	}
}

// AsMap returns v as a map, or nil.
func AsMap(v interface{}) map[string]interface{} {
	switch m := v.(type) {
	case map[string]interface{}:
		return m
	case primitive.M:
		return map[string]interface{}(m)
	default:
		return nil
	}
}
