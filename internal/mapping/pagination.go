package mapping

import (
	"fmt"
	"strings"

	"apimapper/internal/config"
	"apimapper/internal/jsonpath"
	"apimapper/internal/logging"
	"apimapper/internal/state"
	"apimapper/internal/util"
	"apimapper/internal/variables"
)

// BuildPagination produces the pagination fragment for one request.
//
// In client mode nothing is written and every configured parameter name is
// stripped from both locations, whatever earlier requests did. In server mode
// each enabled field with a parameter name is written at the configured
// location with the value of its bound variable: strings in the query,
// numbers in the body. Disabled fields, and enabled fields at the other
// location, are stripped so that each call fully determines its own keys.
func BuildPagination(m config.PaginationMapping, resolver variables.Resolver) Fragment {
	var frag Fragment

	if !isServerMode(m.Mode) {
		for _, name := range m.PaginationParams() {
			frag.remove(config.LocationQuery, name)
			frag.remove(config.LocationBody, name)
		}
		return frag
	}

	target := normalizeLocation(m.Location)
	if target != config.LocationBody {
		target = config.LocationQuery
	}

	for _, nf := range m.Fields() {
		param := nf.Field.Param
		if param == "" {
			continue
		}
		if !nf.Field.Enabled {
			frag.remove(config.LocationQuery, param)
			frag.remove(config.LocationBody, param)
			continue
		}

		varName := nf.Field.Variable
		if varName == "" {
			varName = nf.Name
		}
		value, ok := resolver.Resolve(varName)
		if !ok {
			frag.warn(fmt.Sprintf("pagination field '%s': variable '%s' has no value, parameter '%s' left unchanged", nf.Name, varName, param))
			continue
		}

		frag.remove(otherLocation(target), param)
		if target == config.LocationBody {
			if n, isNum := util.ToNumber(value); isNum {
				frag.set(target, param, n)
			} else {
				frag.warn(fmt.Sprintf("pagination field '%s': value '%s' is not numeric, written verbatim", nf.Name, util.Stringify(value)))
				frag.set(target, param, value)
			}
			continue
		}
		frag.set(target, param, util.Stringify(value))
	}
	return frag
}

// NormalizeResponsePath strips a leading "response.data." or "data." so
// paths copied from the UI resolve against the response payload itself.
func NormalizeResponsePath(path string) string {
	path = strings.TrimSpace(path)
	for _, prefix := range []string{"response.data.", "data."} {
		if strings.HasPrefix(path, prefix) {
			return strings.TrimPrefix(path, prefix)
		}
	}
	return path
}

// ExtractPagination derives pagination state from a response.
//
// Client mode ignores the payload and sets Total to the row count. Server
// mode reads each configured response path from source, keeping the previous
// value when the path misses or is not numeric. TotalPages only derives
// Total (TotalPages × PageSize) when Total itself could not be read.
func ExtractPagination(m config.PaginationMapping, source, rows interface{}, prev state.Pagination) state.Pagination {
	return extractPagination(m, source, nil, rows, prev)
}

// extractPagination also resolves "header:" paths against headers.
func extractPagination(m config.PaginationMapping, source interface{}, headers map[string]string, rows interface{}, prev state.Pagination) state.Pagination {
	out := prev

	if !isServerMode(m.Mode) {
		out.Total = RowCount(rows)
		out.TotalPages = 0
		return out
	}

	read := func(field, path string) (int, bool) {
		path = NormalizeResponsePath(path)
		if path == "" {
			return 0, false
		}
		var (
			v     interface{}
			found bool
		)
		if strings.HasPrefix(path, HeaderPrefix) {
			hv, err := HeaderValue(headers, path)
			v, found = hv, err == nil
		} else {
			v, found = jsonpath.Get(source, path)
		}
		if !found {
			logging.Logf(logging.Debug, "Pagination: response path '%s' for %s not found, keeping previous value", path, field)
			return 0, false
		}
		n, isNum := util.ToNumber(v)
		if !isNum {
			logging.Logf(logging.Debug, "Pagination: response path '%s' for %s is not numeric (%v), keeping previous value", path, field, v)
			return 0, false
		}
		return int(n), true
	}

	rf := m.ResponseFields
	if n, ok := read("currentPage", rf.CurrentPage); ok {
		out.Current = n
	}
	if n, ok := read("pageSize", rf.PageSize); ok {
		out.PageSize = n
	}
	totalFound := false
	if n, ok := read("total", rf.Total); ok {
		out.Total = n
		totalFound = true
	}
	if n, ok := read("totalPages", rf.TotalPages); ok {
		out.TotalPages = n
		if !totalFound {
			out.Total = n * out.PageSize
		}
	}
	return out
}

// RowCount counts rows in the array-or-singleton view of data: arrays count
// their length, a non-nil object counts as one, anything else as zero.
func RowCount(data interface{}) int {
	switch d := data.(type) {
	case []interface{}:
		return len(d)
	case map[string]interface{}:
		return 1
	default:
		return 0
	}
}

// Rows returns the array-or-singleton view of data as a slice.
func Rows(data interface{}) []interface{} {
	switch d := data.(type) {
	case []interface{}:
		return d
	case map[string]interface{}:
		return []interface{}{d}
	default:
		return []interface{}{}
	}
}
