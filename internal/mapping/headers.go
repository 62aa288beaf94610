package mapping

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// HeaderPrefix marks a response path that reads a header instead of the body,
// e.g. "header:X-Total-Count:(\d+)".
const HeaderPrefix = "header:"

// HeaderValue extracts a value from response headers using the expression
// "header:<Name>:<regex>", returning the first capture group.
func HeaderValue(headers map[string]string, extractionExpr string) (string, error) {
	if !strings.HasPrefix(extractionExpr, HeaderPrefix) {
		return "", fmt.Errorf("invalid header extraction expression format: %s", extractionExpr)
	}

	parts := strings.SplitN(strings.TrimPrefix(extractionExpr, HeaderPrefix), ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid header extraction expression format (missing regex): %s", extractionExpr)
	}

	headerName := strings.TrimSpace(parts[0])
	regexPattern := parts[1]
	if headerName == "" || regexPattern == "" {
		return "", fmt.Errorf("invalid header extraction expression format (empty header name or regex): %s", extractionExpr)
	}

	headerValue, present := lookupHeader(headers, headerName)
	if !present {
		return "", fmt.Errorf("header '%s' not found in response", headerName)
	}

	re, err := regexp.Compile(regexPattern)
	if err != nil {
		return "", fmt.Errorf("invalid regex pattern '%s': %w", regexPattern, err)
	}

	matches := re.FindStringSubmatch(headerValue)
	if len(matches) < 2 {
		return "", fmt.Errorf("regex '%s' did not match or capture a group in header '%s' value '%s'", regexPattern, headerName, headerValue)
	}
	return matches[1], nil
}

func lookupHeader(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}
	if v, ok := headers[http.CanonicalHeaderKey(name)]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
