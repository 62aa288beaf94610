package state

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Condition is one atomic filter condition.
type Condition struct {
	Field string      `json:"field"`
	Op    string      `json:"op"`
	Value interface{} `json:"value"`
}

// LogicalCondition is an atomic condition tagged with the logic of its nearest enclosing group.
type LogicalCondition struct {
	Logic string
	Condition
}

// ParseFilter decodes a filter expression from JSON text. Blank input is no filter.
func ParseFilter(raw string) (interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var expr interface{}
	if err := json.Unmarshal([]byte(raw), &expr); err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	return expr, nil
}

// AtomicConditions walks a decoded filter expression in document order and
// returns every atomic condition. Objects with a "field" and an "op" (or
// "operator") key are atomic; {"and":[...]}, {"or":[...]} and
// {"logic":"and|or","conditions":[...]} are groups; bare arrays are "and" groups.
func AtomicConditions(expr interface{}) []LogicalCondition {
	var out []LogicalCondition
	walkFilter(expr, "and", &out)
	return out
}

func walkFilter(node interface{}, logic string, out *[]LogicalCondition) {
	switch n := node.(type) {
	case []interface{}:
		for _, child := range n {
			walkFilter(child, logic, out)
		}
	case map[string]interface{}:
		if c, ok := asCondition(n); ok {
			*out = append(*out, LogicalCondition{Logic: logic, Condition: c})
			return
		}
		if children, ok := n["conditions"]; ok {
			groupLogic := logic
			if l, ok := n["logic"].(string); ok && l != "" {
				groupLogic = strings.ToLower(l)
			}
			walkFilter(children, groupLogic, out)
			return
		}
		// Group keys are visited in a fixed order so the walk is deterministic.
		for _, key := range []string{"and", "or"} {
			if children, ok := n[key]; ok {
				walkFilter(children, key, out)
			}
		}
	}
}

func asCondition(n map[string]interface{}) (Condition, bool) {
	field, hasField := n["field"].(string)
	if !hasField {
		return Condition{}, false
	}
	op, hasOp := n["op"].(string)
	if !hasOp {
		op, hasOp = n["operator"].(string)
	}
	if !hasOp {
		return Condition{}, false
	}
	return Condition{Field: field, Op: op, Value: n["value"]}, true
}
