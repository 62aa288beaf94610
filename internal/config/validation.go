package config

import (
	"fmt"
	"net/url"
	"strings"

	"apimapper/internal/util"
)

// --- Known values definitions ---
var (
	knownLogLevels      = []string{"none", "error", "warn", "warning", "info", "debug"}
	knownLogFormats     = []string{"", "console", "json"}
	knownAuthTypes      = []string{"none", "api_key", "basic", "bearer", "ntlm", "oauth2", ""}
	knownModes          = []string{ModeClient, ModeServer}
	knownLocations      = []string{LocationQuery, LocationBody}
	knownBodyTypes      = []string{BodyJSON, BodyText, BodyForm}
	knownConditionModes = []string{ConditionSimple, ConditionComposite}
	knownLogicModes     = []string{LogicAnd, LogicOr}
	knownVariableTypes  = []string{TypeString, TypeNumber, TypeBoolean, TypeObject, TypeOperator}
	knownHttpMethods    = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

	paginationBuiltins = []string{"currentPage", "pageSize", "total", "totalPages"}
)

// isValidEnumValue checks if a value is present in a list of allowed values, ignoring case.
func isValidEnumValue(value string, allowedValues []string) bool {
	for _, allowed := range allowedValues {
		if strings.EqualFold(value, allowed) {
			return true
		}
	}
	return false
}

// ValidateConfigManually performs comprehensive validation of the loaded configuration.
func ValidateConfigManually(cfg *Config) error {
	var allErrors []string
	allErrors = append(allErrors, validateRetryConfig("Config.Retry", &cfg.Retry)...)
	allErrors = append(allErrors, validateLoggingConfig("Config.Logging", &cfg.Logging)...)
	allErrors = append(allErrors, validateAuthConfig("Config.Auth", &cfg.Auth)...)
	if cfg.Transport.TimeoutMs < 0 {
		allErrors = append(allErrors, "- Config.Transport.TimeoutMs: cannot be negative")
	}
	for name, rc := range cfg.Requests {
		tempRC := rc
		allErrors = append(allErrors, validateRequestConfig(fmt.Sprintf("Config.Requests[%s]", name), &tempRC)...)
	}
	if len(allErrors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(allErrors, "\n"))
	}
	return nil
}

// ValidateRequest validates a single request configuration, e.g. one posted to the HTTP API.
// Defaults are expected to be applied already.
func ValidateRequest(rc *RequestConfig) error {
	if errs := validateRequestConfig("Request", rc); len(errs) > 0 {
		return fmt.Errorf("request validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

func validateRetryConfig(prefix string, cfg *RetryConfig) []string {
	var errs []string
	if cfg.MaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("- %s.MaxAttempts: must be at least 1", prefix))
	}
	if cfg.Backoff < 1 {
		errs = append(errs, fmt.Sprintf("- %s.Backoff: must be at least 1 second", prefix))
	}
	return errs
}

func validateLoggingConfig(prefix string, cfg *LoggingConfig) []string {
	var errs []string
	if !isValidEnumValue(cfg.Level, knownLogLevels) {
		errs = append(errs, fmt.Sprintf("- %s.Level: invalid log level '%s', must be one of %v", prefix, cfg.Level, knownLogLevels))
	}
	if !isValidEnumValue(cfg.Format, knownLogFormats) {
		errs = append(errs, fmt.Sprintf("- %s.Format: invalid format '%s', must be 'console' or 'json'", prefix, cfg.Format))
	}
	return errs
}

func validateAuthConfig(prefix string, cfg *AuthConfig) []string {
	var errs []string
	authType := strings.ToLower(cfg.Type)
	if !isValidEnumValue(authType, knownAuthTypes) {
		errs = append(errs, fmt.Sprintf("- %s.Type: invalid auth type '%s'", prefix, cfg.Type))
		return errs
	}
	required := map[string][]string{
		"api_key": {"api_key"},
		"basic":   {"username", "password"},
		"ntlm":    {"username", "password"},
		"oauth2":  {"client_id", "client_secret", "token_url"},
	}
	for _, field := range required[authType] {
		if v, ok := cfg.Credentials[field]; !ok || v == "" {
			errs = append(errs, fmt.Sprintf("- %s.Credentials: missing or empty required key '%s' for auth type '%s'", prefix, field, authType))
		}
	}
	return errs
}

func validateRequestConfig(prefix string, rc *RequestConfig) []string {
	var errs []string
	if rc.URL == "" {
		errs = append(errs, fmt.Sprintf("- %s.URL: is required", prefix))
	} else {
		parsedURL, err := url.ParseRequestURI(util.ExpandEnvUniversal(rc.URL))
		if err != nil {
			errs = append(errs, fmt.Sprintf("- %s.URL: invalid URL format: %v", prefix, err))
		} else if scheme := strings.ToLower(parsedURL.Scheme); scheme != "http" && scheme != "https" {
			errs = append(errs, fmt.Sprintf("- %s.URL: invalid URL scheme '%s', must be http or https", prefix, parsedURL.Scheme))
		}
	}
	if !isValidEnumValue(rc.Method, knownHttpMethods) {
		errs = append(errs, fmt.Sprintf("- %s.Method: invalid HTTP method '%s'", prefix, rc.Method))
	}
	if !isValidEnumValue(rc.BodyType, knownBodyTypes) {
		errs = append(errs, fmt.Sprintf("- %s.BodyType: invalid body type '%s', must be one of %v", prefix, rc.BodyType, knownBodyTypes))
	}
	for i, h := range rc.Headers {
		if strings.TrimSpace(h.Name) == "" {
			errs = append(errs, fmt.Sprintf("- %s.Headers[%d].Name: is required", prefix, i))
		}
	}
	for i, p := range rc.Params {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Sprintf("- %s.Params[%d].Name: is required", prefix, i))
		}
	}

	customNames := make(map[string]bool, len(rc.Variables))
	for i, v := range rc.Variables {
		vp := fmt.Sprintf("%s.Variables[%d]", prefix, i)
		if strings.TrimSpace(v.Name) == "" {
			errs = append(errs, fmt.Sprintf("- %s.Name: is required", vp))
			continue
		}
		if customNames[v.Name] {
			errs = append(errs, fmt.Sprintf("- %s.Name: duplicate variable name '%s'", vp, v.Name))
		}
		customNames[v.Name] = true
		if !isValidEnumValue(v.Type, knownVariableTypes) {
			errs = append(errs, fmt.Sprintf("- %s.Type: invalid variable type '%s', must be one of %v", vp, v.Type, knownVariableTypes))
		}
	}

	errs = append(errs, validatePaginationMapping(prefix+".Pagination", &rc.Pagination, customNames)...)
	errs = append(errs, validateSortMapping(prefix+".Sort", &rc.Sort)...)
	errs = append(errs, validateFilterMapping(prefix+".Filter", &rc.Filter)...)
	return errs
}

func validateModeAndLocation(prefix, mode, location string) []string {
	var errs []string
	if !isValidEnumValue(mode, knownModes) {
		errs = append(errs, fmt.Sprintf("- %s.Mode: invalid mode '%s', must be 'client' or 'server'", prefix, mode))
	}
	if !isValidEnumValue(location, knownLocations) {
		errs = append(errs, fmt.Sprintf("- %s.Location: invalid location '%s', must be 'query' or 'body'", prefix, location))
	}
	return errs
}

func validatePaginationMapping(prefix string, m *PaginationMapping, customNames map[string]bool) []string {
	errs := validateModeAndLocation(prefix, m.Mode, m.Location)
	seen := make(map[string]string)
	for _, nf := range m.Fields() {
		fp := fmt.Sprintf("%s.%s", prefix, nf.Name)
		if nf.Field.Enabled && nf.Field.Param == "" && m.Mode == ModeServer {
			errs = append(errs, fmt.Sprintf("- %s.Param: is required when the field is enabled", fp))
		}
		if nf.Field.Param != "" {
			if other, dup := seen[nf.Field.Param]; dup {
				errs = append(errs, fmt.Sprintf("- %s.Param: '%s' is already used by %s", fp, nf.Field.Param, other))
			}
			seen[nf.Field.Param] = nf.Name
		}
		if v := nf.Field.Variable; v != "" && !isValidEnumValue(v, paginationBuiltins) && !customNames[v] {
			errs = append(errs, fmt.Sprintf("- %s.Variable: '%s' is neither a pagination built-in %v nor a declared variable", fp, v, paginationBuiltins))
		}
	}
	return errs
}

func validateSortMapping(prefix string, m *SortMapping) []string {
	errs := validateModeAndLocation(prefix, m.Mode, m.Location)
	if m.FieldKey != "" && m.FieldKey == m.DirectionKey {
		errs = append(errs, fmt.Sprintf("- %s: field_key and direction_key cannot be the same ('%s')", prefix, m.FieldKey))
	}
	return errs
}

func validateFilterMapping(prefix string, m *FilterMapping) []string {
	errs := validateModeAndLocation(prefix, m.Mode, m.Location)
	if !isValidEnumValue(m.ConditionMode, knownConditionModes) {
		errs = append(errs, fmt.Sprintf("- %s.ConditionMode: invalid condition mode '%s', must be 'simple' or 'composite'", prefix, m.ConditionMode))
	}
	for _, l := range m.LogicModes {
		if !isValidEnumValue(l, knownLogicModes) {
			errs = append(errs, fmt.Sprintf("- %s.LogicModes: invalid logic mode '%s', must be 'and' or 'or'", prefix, l))
		}
	}
	if m.ConditionMode == ConditionComposite && strings.TrimSpace(m.ItemTemplate) == "" {
		errs = append(errs, fmt.Sprintf("- %s.ItemTemplate: is required for composite condition mode", prefix))
	}
	for i, b := range m.OperatorBindings {
		if b.BuiltinOperator == "" || b.APIOperator == "" {
			errs = append(errs, fmt.Sprintf("- %s.OperatorBindings[%d]: both api_operator and builtin_operator are required", prefix, i))
		}
	}
	return errs
}
