// Package variables resolves template and binding variable names to values.
package variables

import (
	"encoding/json"
	"strconv"

	"apimapper/internal/config"
	"apimapper/internal/state"
	"apimapper/internal/util"
)

// Resolver looks a variable up by name. A false result means "no value", not an error.
type Resolver interface {
	Resolve(name string) (interface{}, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) (interface{}, bool)

// Resolve calls f.
func (f ResolverFunc) Resolve(name string) (interface{}, bool) { return f(name) }

// CanonicalOperators is the fixed operator set every filter understands.
var CanonicalOperators = []string{
	"equals", "not_equals", "contains", "starts_with", "ends_with",
	"gt", "gte", "lt", "lte", "empty", "not_empty",
}

// OperatorAliases are the common short tokens exposed next to the canonical set.
var OperatorAliases = []string{"eq", "ne", "like", "in", "nin", "regex", "and", "or"}

var operatorSet = func() map[string]bool {
	m := make(map[string]bool, len(CanonicalOperators)+len(OperatorAliases))
	for _, op := range CanonicalOperators {
		m[op] = true
	}
	for _, op := range OperatorAliases {
		m[op] = true
	}
	return m
}()

// IsOperatorToken reports whether name is a built-in operator variable.
func IsOperatorToken(name string) bool { return operatorSet[name] }

// Sources is everything a registry derives values from.
type Sources struct {
	Custom     []config.Variable
	Bindings   []config.OperatorBinding
	Pagination state.Pagination
	Filter     interface{}
}

// Registry resolves custom variables first, then operator bindings, then built-ins.
// Built-ins are recomputed from the sources on every lookup and never stored.
type Registry struct {
	src Sources
}

// New creates a registry over the given sources.
func New(src Sources) *Registry {
	return &Registry{src: src}
}

// Resolve implements Resolver. Custom variables deliberately shadow built-ins
// of the same name, including "filter".
func (r *Registry) Resolve(name string) (interface{}, bool) {
	v, ok := r.Lookup(name)
	if !ok {
		return nil, false
	}
	return resolveRaw(v.Raw), true
}

// Lookup returns the typed raw value behind a name, in the same order as Resolve.
func (r *Registry) Lookup(name string) (Value, bool) {
	for _, v := range r.src.Custom {
		if v.Name == name {
			return Value{Type: v.Type, Raw: v.Value}, true
		}
	}
	for _, b := range r.src.Bindings {
		if b.BuiltinOperator == name {
			return Value{Type: config.TypeOperator, Raw: b.APIOperator}, true
		}
	}
	return r.builtin(name)
}

func (r *Registry) builtin(name string) (Value, bool) {
	p := r.src.Pagination
	switch name {
	case "currentPage":
		return Value{Type: config.TypeNumber, Raw: strconv.Itoa(p.Current)}, true
	case "pageSize":
		return Value{Type: config.TypeNumber, Raw: strconv.Itoa(p.PageSize)}, true
	case "total":
		return Value{Type: config.TypeNumber, Raw: strconv.Itoa(p.Total)}, true
	case "totalPages":
		return Value{Type: config.TypeNumber, Raw: strconv.Itoa(p.DerivedTotalPages())}, true
	case "filter":
		return Value{Type: config.TypeObject, Raw: filterString(r.src.Filter)}, true
	}
	if IsOperatorToken(name) {
		return Value{Type: config.TypeOperator, Raw: name}, true
	}
	return Value{}, false
}

// filterString keeps JSON-shaped strings as they are and JSON-encodes everything else.
func filterString(f interface{}) string {
	if s, ok := f.(string); ok && util.LooksLikeJSON(s) {
		return s
	}
	b, err := json.Marshal(f)
	if err != nil {
		return "null"
	}
	return string(b)
}

// Builtins lists the synthesized built-in variables for the current sources.
func (r *Registry) Builtins() []config.Variable {
	names := []string{"currentPage", "pageSize", "total", "totalPages", "filter"}
	names = append(names, CanonicalOperators...)
	names = append(names, OperatorAliases...)

	out := make([]config.Variable, 0, len(names))
	for _, n := range names {
		v, _ := r.builtin(n)
		scope := "pagination"
		switch {
		case n == "filter":
			scope = "filter"
		case IsOperatorToken(n):
			scope = "operator"
		}
		out = append(out, config.Variable{
			Name:    n,
			Value:   v.Raw,
			Type:    v.Type,
			Source:  "builtin",
			Scope:   scope,
			BuiltIn: true,
		})
	}
	return out
}
