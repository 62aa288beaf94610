// Package jsonpath resolves dot-notation and JSONPath expressions against
// response payloads, either decoded or raw.
package jsonpath

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/tidwall/gjson"
)

// Compile turns a path into an ojg expression. Paths starting with '$' are
// full JSONPath; anything else is split on '.' and each segment is a key, or
// either a key or an index when it is numeric.
func Compile(path string) (jp.Expr, error) {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "$") {
		x, err := jp.ParseString(path)
		if err != nil {
			return nil, fmt.Errorf("invalid JSONPath '%s': %w", path, err)
		}
		return x, nil
	}

	x := jp.R()
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, fmt.Errorf("invalid path '%s': empty segment", path)
		}
		if n, err := strconv.Atoi(seg); err == nil {
			x = x.U(seg, int64(n))
			continue
		}
		x = x.C(seg)
	}
	return x, nil
}

// Get resolves path against decoded JSON data. An empty path returns data.
// Any miss, including an invalid path, reports false.
func Get(data interface{}, path string) (interface{}, bool) {
	if strings.TrimSpace(path) == "" {
		return data, true
	}
	x, err := Compile(path)
	if err != nil {
		return nil, false
	}
	results := x.Get(data)
	if len(results) == 0 {
		return nil, false
	}
	return results[0], true
}

// GetBytes resolves path against a raw JSON document. Dot paths are served
// by gjson straight from the bytes; JSONPath expressions decode first.
func GetBytes(doc []byte, path string) (interface{}, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		var out interface{}
		if err := json.Unmarshal(doc, &out); err != nil {
			return nil, false
		}
		return out, true
	}
	if strings.HasPrefix(path, "$") {
		var data interface{}
		if err := json.Unmarshal(doc, &data); err != nil {
			return nil, false
		}
		return Get(data, path)
	}
	res := gjson.GetBytes(doc, path)
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}
