package template

import (
	"regexp"

	"apimapper/internal/logging"
	"apimapper/internal/util"
	"apimapper/internal/variables"
)

// placeholderPattern matches {{ name }} with optional inner whitespace.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Render substitutes every {{ name }} placeholder in tmplStr with the value
// the resolver returns for name. Strings are inserted verbatim and other
// values as compact JSON. Placeholders the resolver cannot answer are left
// in place and their names returned as missing.
func Render(templateName, tmplStr string, resolver variables.Resolver) (string, []string) {
	if tmplStr == "" {
		return "", nil
	}

	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(tmplStr, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if resolver != nil {
			if v, ok := resolver.Resolve(name); ok {
				return util.Stringify(v)
			}
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		logging.Logf(logging.Debug, "Template '%s': unresolved placeholders %v", templateName, missing)
	}
	return out, missing
}

// Placeholders lists the placeholder names in tmplStr in order of appearance.
func Placeholders(tmplStr string) []string {
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(tmplStr, -1) {
		names = append(names, m[1])
	}
	return names
}
