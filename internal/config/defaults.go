package config

import "strings"

// ApplyRequestDefaults fills the blank parts of a request configuration.
// Direction literals are left blank on purpose; mappers fall back at use time.
func ApplyRequestDefaults(rc *RequestConfig) {
	rc.Method = strings.ToUpper(strings.TrimSpace(rc.Method))
	if rc.Method == "" {
		rc.Method = "GET"
	}
	rc.BodyType = lowerOr(rc.BodyType, BodyJSON)

	rc.Pagination.Mode = lowerOr(rc.Pagination.Mode, ModeClient)
	rc.Pagination.Location = lowerOr(rc.Pagination.Location, LocationQuery)

	rc.Sort.Mode = lowerOr(rc.Sort.Mode, ModeClient)
	rc.Sort.Location = lowerOr(rc.Sort.Location, LocationQuery)

	rc.Filter.Mode = lowerOr(rc.Filter.Mode, ModeClient)
	rc.Filter.Location = lowerOr(rc.Filter.Location, LocationQuery)
	rc.Filter.ConditionMode = lowerOr(rc.Filter.ConditionMode, ConditionSimple)
	if strings.TrimSpace(rc.Filter.TargetFieldKey) == "" {
		rc.Filter.TargetFieldKey = DefaultTargetFieldKey
	}
	if rc.Filter.ConditionMode == ConditionComposite && len(rc.Filter.LogicModes) == 0 {
		rc.Filter.LogicModes = []string{LogicAnd}
	}
	for i, m := range rc.Filter.LogicModes {
		rc.Filter.LogicModes[i] = strings.ToLower(strings.TrimSpace(m))
	}

	for i := range rc.Variables {
		rc.Variables[i].Type = lowerOr(rc.Variables[i].Type, TypeString)
	}
}

func lowerOr(v, def string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return def
	}
	return v
}

// Clone returns a deep copy so that panels never share slices.
func (rc RequestConfig) Clone() RequestConfig {
	out := rc
	out.Headers = append([]Header(nil), rc.Headers...)
	out.Params = append([]QueryParam(nil), rc.Params...)
	out.Variables = append([]Variable(nil), rc.Variables...)
	out.Filter.LogicModes = append([]string(nil), rc.Filter.LogicModes...)
	out.Filter.OperatorBindings = append([]OperatorBinding(nil), rc.Filter.OperatorBindings...)
	return out
}

// PaginationParams lists the non-empty outbound parameter names of every
// pagination field, enabled or not.
func (m PaginationMapping) PaginationParams() []string {
	var names []string
	for _, f := range m.Fields() {
		if f.Field.Param != "" {
			names = append(names, f.Field.Param)
		}
	}
	return names
}

// NamedField pairs a pagination field with the name of its built-in variable.
type NamedField struct {
	Name  string
	Field PaginationField
}

// Fields returns the four pagination fields in canonical order.
func (m PaginationMapping) Fields() []NamedField {
	return []NamedField{
		{Name: "currentPage", Field: m.CurrentPage},
		{Name: "pageSize", Field: m.PageSize},
		{Name: "total", Field: m.Total},
		{Name: "totalPages", Field: m.TotalPages},
	}
}

// HasLogic reports whether the logic mode is active.
func (m FilterMapping) HasLogic(mode string) bool {
	for _, l := range m.LogicModes {
		if l == mode {
			return true
		}
	}
	return false
}
