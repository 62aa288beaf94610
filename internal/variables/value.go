package variables

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"apimapper/internal/config"
	"apimapper/internal/util"
)

// Value is a variable value kept in its raw string form together with its declared type.
type Value struct {
	Type string
	Raw  string
}

// ParseAs converts the raw string into the Go value of the given type:
// float64 for numbers, bool for booleans, decoded JSON for objects and the
// raw string for strings and operators.
func (v Value) ParseAs(typ string) (interface{}, error) {
	switch strings.ToLower(typ) {
	case config.TypeNumber:
		n, ok := util.ToNumber(v.Raw)
		if !ok {
			return nil, fmt.Errorf("value '%s' is not a number", v.Raw)
		}
		return n, nil
	case config.TypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(v.Raw))
		if err != nil {
			return nil, fmt.Errorf("value '%s' is not a boolean", v.Raw)
		}
		return b, nil
	case config.TypeObject:
		var out interface{}
		if err := json.Unmarshal([]byte(v.Raw), &out); err != nil {
			return nil, fmt.Errorf("value is not valid JSON: %w", err)
		}
		return out, nil
	case config.TypeString, config.TypeOperator, "":
		return v.Raw, nil
	default:
		return nil, fmt.Errorf("unknown variable type '%s'", typ)
	}
}

// Typed returns the value parsed as its own type, or the raw string when that fails.
func (v Value) Typed() interface{} {
	out, err := v.ParseAs(v.Type)
	if err != nil {
		return v.Raw
	}
	return out
}

// resolveRaw parses JSON-shaped strings; everything else, including
// unparseable JSON-shaped strings, stays a string.
func resolveRaw(raw string) interface{} {
	if !util.LooksLikeJSON(raw) {
		return raw
	}
	var out interface{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return raw
	}
	return out
}
