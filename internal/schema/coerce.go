package schema

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"familyphotos/internal/models"
)

// coerce converts a loosely typed value (decoded JSON or a query string) to the Go type of f.
// Strings are accepted for integer and boolean fields.
func coerce(f *Field, raw interface{}) (interface{}, error) {
	switch f.Type {
	case TypeString, TypeDate:
		s, ok := raw.(string)
		if !ok {
			return nil, invalid(f.Name, "must be a %s", f.Type)
		}
		if f.Type == TypeDate && s != "" {
			if _, err := time.Parse(models.DateLayout, s); err != nil {
				return nil, invalid(f.Name, "must be a date in YYYY-MM-DD format")
			}
		}
		return s, nil

	case TypeInt:
		switch v := raw.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			if v != math.Trunc(v) {
				return nil, invalid(f.Name, "must be an integer")
			}
			return int64(v), nil
		case json.Number:
			n, err := v.Int64()
			if err != nil {
				return nil, invalid(f.Name, "must be an integer")
			}
			return n, nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return nil, invalid(f.Name, "must be an integer")
			}
			return n, nil
		}
		return nil, invalid(f.Name, "must be an integer")

	case TypeBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, invalid(f.Name, "must be a boolean")
			}
			return b, nil
		}
		return nil, invalid(f.Name, "must be a boolean")

	case TypeStringList:
		switch v := raw.(type) {
		case models.StringList:
			return v, nil
		case []string:
			return models.StringList(v), nil
		case []interface{}:
			out := make(models.StringList, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, invalid(f.Name, "must be an array of strings")
				}
				out = append(out, s)
			}
			return out, nil
		case nil:
			return models.StringList{}, nil
		}
		return nil, invalid(f.Name, "must be an array of strings")

	case TypeDateTime:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return nil, invalid(f.Name, "must be an RFC 3339 timestamp")
			}
			return t.UTC(), nil
		}
		return nil, invalid(f.Name, "must be an RFC 3339 timestamp")
	}
	return nil, invalid(f.Name, "has an unsupported type")
}
