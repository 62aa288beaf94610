package mapping

import (
	"regexp"
	"sort"
	"strings"

	"apimapper/internal/jsonpath"
	"apimapper/internal/state"
	"apimapper/internal/util"
)

// FilterRows keeps the rows matching a filter expression. A nil expression
// keeps everything.
func FilterRows(rows []interface{}, expr interface{}) []interface{} {
	if expr == nil {
		return rows
	}
	out := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		if matchExpr(expr, row) {
			out = append(out, row)
		}
	}
	return out
}

// SortRows returns a stably sorted copy of rows. An inactive sort returns
// rows unchanged.
func SortRows(rows []interface{}, s *state.Sort) []interface{} {
	if !s.Active() {
		return rows
	}
	out := make([]interface{}, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := jsonpath.Get(out[i], s.Field)
		b, _ := jsonpath.Get(out[j], s.Field)
		c := compareValues(a, b)
		if s.Order == state.Descend {
			return c > 0
		}
		return c < 0
	})
	return out
}

// PageRows returns the rows of page current (1-based). Non-positive sizes
// return everything.
func PageRows(rows []interface{}, current, size int) []interface{} {
	if size <= 0 {
		return rows
	}
	if current < 1 {
		current = 1
	}
	start := (current - 1) * size
	if start >= len(rows) {
		return []interface{}{}
	}
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// ApplyLocal filters, sorts and pages rows in memory for client mode and
// returns the visible page with the filtered row count.
func ApplyLocal(rows []interface{}, in Inputs) ([]interface{}, int) {
	filtered := FilterRows(rows, in.Filter)
	sorted := SortRows(filtered, in.Sort)
	return PageRows(sorted, in.Pagination.Current, in.Pagination.PageSize), len(filtered)
}

func matchExpr(node interface{}, row interface{}) bool {
	switch n := node.(type) {
	case []interface{}:
		for _, child := range n {
			if !matchExpr(child, row) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		if c, ok := conditionOf(n); ok {
			return matchCondition(c, row)
		}
		if children, ok := n["conditions"]; ok {
			if l, _ := n["logic"].(string); strings.EqualFold(l, "or") {
				return matchAny(children, row)
			}
			return matchExpr(children, row)
		}
		matched := true
		if children, ok := n["and"]; ok {
			matched = matched && matchExpr(children, row)
		}
		if children, ok := n["or"]; ok {
			matched = matched && matchAny(children, row)
		}
		return matched
	default:
		return true
	}
}

func matchAny(node interface{}, row interface{}) bool {
	list, ok := node.([]interface{})
	if !ok {
		return matchExpr(node, row)
	}
	if len(list) == 0 {
		return true
	}
	for _, child := range list {
		if matchExpr(child, row) {
			return true
		}
	}
	return false
}

func conditionOf(n map[string]interface{}) (state.Condition, bool) {
	conds := state.AtomicConditions(n)
	if len(conds) != 1 {
		return state.Condition{}, false
	}
	if _, isGroup := n["conditions"]; isGroup {
		return state.Condition{}, false
	}
	if _, hasField := n["field"]; !hasField {
		return state.Condition{}, false
	}
	return conds[0].Condition, true
}

func matchCondition(c state.Condition, row interface{}) bool {
	actual, found := jsonpath.Get(row, c.Field)
	want := c.Value

	switch strings.ToLower(c.Op) {
	case "equals", "eq", "=", "==":
		return found && compareValues(actual, want) == 0
	case "not_equals", "ne", "!=", "<>":
		return !found || compareValues(actual, want) != 0
	case "contains", "like":
		return found && strings.Contains(strings.ToLower(util.Stringify(actual)), strings.ToLower(util.Stringify(want)))
	case "starts_with":
		return found && strings.HasPrefix(strings.ToLower(util.Stringify(actual)), strings.ToLower(util.Stringify(want)))
	case "ends_with":
		return found && strings.HasSuffix(strings.ToLower(util.Stringify(actual)), strings.ToLower(util.Stringify(want)))
	case "gt", ">":
		return found && compareValues(actual, want) > 0
	case "gte", ">=":
		return found && compareValues(actual, want) >= 0
	case "lt", "<":
		return found && compareValues(actual, want) < 0
	case "lte", "<=":
		return found && compareValues(actual, want) <= 0
	case "empty":
		return !found || util.Stringify(actual) == ""
	case "not_empty":
		return found && util.Stringify(actual) != ""
	case "in":
		return found && inList(actual, want)
	case "nin":
		return !found || !inList(actual, want)
	case "regex":
		re, err := regexp.Compile(util.Stringify(want))
		return err == nil && found && re.MatchString(util.Stringify(actual))
	default:
		return true
	}
}

func inList(actual, list interface{}) bool {
	items, ok := list.([]interface{})
	if !ok {
		items = nil
		for _, s := range strings.Split(util.Stringify(list), ",") {
			items = append(items, strings.TrimSpace(s))
		}
	}
	for _, item := range items {
		if compareValues(actual, item) == 0 {
			return true
		}
	}
	return false
}

// compareValues orders numbers numerically and everything else as text.
// Missing values sort first.
func compareValues(a, b interface{}) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if x, ok := util.ToNumber(a); ok {
		if y, ok := util.ToNumber(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(util.Stringify(a), util.Stringify(b))
}
