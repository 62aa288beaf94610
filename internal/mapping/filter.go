package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"apimapper/internal/config"
	"apimapper/internal/logging"
	"apimapper/internal/state"
	"apimapper/internal/template"
	"apimapper/internal/variables"
)

// FilterRequest is everything needed to turn a filter expression into the
// value of the request's target field.
type FilterRequest struct {
	Mode             string                   `json:"mode"`
	Location         string                   `json:"location"`
	TargetFieldKey   string                   `json:"targetFieldKey"`
	ConditionMode    string                   `json:"conditionMode"`
	ItemTemplate     string                   `json:"itemTemplate,omitempty"`
	LogicModes       []string                 `json:"logicModes,omitempty"`
	Variables        []config.Variable        `json:"variables,omitempty"`
	OperatorBindings []config.OperatorBinding `json:"operatorBindings,omitempty"`
	Filter           interface{}              `json:"filter"`
	Pagination       state.Pagination         `json:"pagination"`
}

// NewFilterRequest builds a request from a filter mapping and the live state.
func NewFilterRequest(m config.FilterMapping, vars []config.Variable, filter interface{}, pag state.Pagination) FilterRequest {
	return FilterRequest{
		Mode:             m.Mode,
		Location:         m.Location,
		TargetFieldKey:   m.TargetFieldKey,
		ConditionMode:    m.ConditionMode,
		ItemTemplate:     m.ItemTemplate,
		LogicModes:       append([]string(nil), m.LogicModes...),
		Variables:        append([]config.Variable(nil), vars...),
		OperatorBindings: append([]config.OperatorBinding(nil), m.OperatorBindings...),
		Filter:           filter,
		Pagination:       pag,
	}
}

// FilterSubmission is the composed filter: where it goes and what it holds.
// Nil Conditions clears the target field.
type FilterSubmission struct {
	Location       string      `json:"location"`
	TargetFieldKey string      `json:"targetFieldKey"`
	Conditions     interface{} `json:"conditions"`
	Warnings       []string    `json:"warnings,omitempty"`
}

// Fragment converts the submission into request writes. Query values are
// JSON strings; body values are structured. A blank location means the
// query string; an unknown one writes nothing and warns.
func (s *FilterSubmission) Fragment() Fragment {
	var frag Fragment
	target, ok := s.target()
	if !ok {
		if s != nil && strings.TrimSpace(s.TargetFieldKey) != "" {
			frag.warn(fmt.Sprintf("filter field '%s': unknown location '%s', conditions not applied", s.TargetFieldKey, s.Location))
		}
		return frag
	}
	if s.Conditions == nil {
		frag.remove(target.Location, target.Key)
		return frag
	}
	frag.set(target.Location, target.Key, s.Conditions)
	return frag
}

// target is the key the submission owns, with its location normalized.
func (s *FilterSubmission) target() (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	key := strings.TrimSpace(s.TargetFieldKey)
	loc := normalizeLocation(s.Location)
	if key == "" || (loc != config.LocationQuery && loc != config.LocationBody) {
		return Entry{}, false
	}
	return Entry{Location: loc, Key: key}, true
}

// FilterComposer composes filter submissions, in process or remotely.
type FilterComposer interface {
	ComposeFilter(ctx context.Context, req FilterRequest) (*FilterSubmission, error)
}

// LocalComposer composes in process.
type LocalComposer struct{}

// ComposeFilter implements FilterComposer.
func (LocalComposer) ComposeFilter(ctx context.Context, req FilterRequest) (*FilterSubmission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ComposeFilter(req)
}

// ComposeFilter turns a filter expression into a submission.
//
// Simple mode passes the expression through. Composite mode renders the item
// template once per atomic condition and either lists the rendered items or,
// when more than one logic mode is enabled, groups them under "and"/"or".
// The output depends only on the request, so composing twice yields
// byte-identical results.
func ComposeFilter(req FilterRequest) (*FilterSubmission, error) {
	sub := &FilterSubmission{
		Location:       normalizeLocation(req.Location),
		TargetFieldKey: strings.TrimSpace(req.TargetFieldKey),
	}
	if sub.Location != config.LocationQuery && sub.Location != config.LocationBody {
		return nil, fmt.Errorf("invalid filter location '%s'", req.Location)
	}
	if sub.TargetFieldKey == "" {
		sub.TargetFieldKey = config.DefaultTargetFieldKey
	}

	mode := strings.ToLower(strings.TrimSpace(req.ConditionMode))
	if mode == "" {
		mode = config.ConditionSimple
	}

	var conditions interface{}
	switch mode {
	case config.ConditionSimple:
		conditions = req.Filter
	case config.ConditionComposite:
		if strings.TrimSpace(req.ItemTemplate) == "" {
			return nil, fmt.Errorf("composite filter for '%s' requires an item template", sub.TargetFieldKey)
		}
		if req.Filter != nil {
			var warnings []string
			conditions, warnings = composeItems(req)
			sub.Warnings = append(sub.Warnings, warnings...)
		}
	default:
		return nil, fmt.Errorf("invalid condition mode '%s'", req.ConditionMode)
	}

	if conditions != nil && sub.Location == config.LocationQuery {
		s, err := queryString(conditions)
		if err != nil {
			return nil, fmt.Errorf("encoding conditions for query field '%s': %w", sub.TargetFieldKey, err)
		}
		conditions = s
	}
	sub.Conditions = conditions

	logging.Logf(logging.Debug, "Filter: composed %s conditions for %s field '%s'", mode, sub.Location, sub.TargetFieldKey)
	return sub, nil
}

func composeItems(req FilterRequest) (interface{}, []string) {
	var warnings []string
	reg := variables.New(variables.Sources{
		Custom:     req.Variables,
		Bindings:   req.OperatorBindings,
		Pagination: req.Pagination,
		Filter:     req.Filter,
	})

	modes := activeLogicModes(req.LogicModes)
	grouped := len(modes) > 1
	groups := make(map[string][]interface{})
	items := make([]interface{}, 0)

	for i, atom := range state.AtomicConditions(req.Filter) {
		atom := atom
		resolver := variables.ResolverFunc(func(name string) (interface{}, bool) {
			switch name {
			case "filter.field":
				return atom.Field, true
			case "filter.op", "filter.operator":
				return atom.Op, true
			case "filter.value":
				return atom.Value, true
			}
			return reg.Resolve(name)
		})

		rendered, missing := template.Render(fmt.Sprintf("condition %d", i), req.ItemTemplate, resolver)
		if len(missing) > 0 {
			warnings = append(warnings, fmt.Sprintf("condition %d (%s): unresolved placeholders %s", i, atom.Field, strings.Join(missing, ", ")))
		}

		var item interface{}
		if err := json.Unmarshal([]byte(rendered), &item); err != nil {
			warnings = append(warnings, fmt.Sprintf("condition %d (%s): rendered item is not JSON, kept as text", i, atom.Field))
			item = rendered
		}

		if !grouped {
			items = append(items, item)
			continue
		}
		logic := atom.Logic
		if !containsString(modes, logic) {
			logic = modes[0]
		}
		groups[logic] = append(groups[logic], item)
	}

	if !grouped {
		return items, warnings
	}
	out := make(map[string]interface{}, len(groups))
	for logic, g := range groups {
		out[logic] = g
	}
	return out, warnings
}

// activeLogicModes returns the known modes in canonical order, deduplicated.
func activeLogicModes(modes []string) []string {
	var out []string
	for _, known := range []string{config.LogicAnd, config.LogicOr} {
		for _, m := range modes {
			if strings.EqualFold(strings.TrimSpace(m), known) {
				out = append(out, known)
				break
			}
		}
	}
	if len(out) == 0 {
		out = []string{config.LogicAnd}
	}
	return out
}

func queryString(v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
