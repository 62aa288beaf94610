package config

import "time"

// Config holds the tool configuration: transport settings and the named request definitions.
type Config struct {
	Retry     RetryConfig              `yaml:"retry"`
	Auth      AuthConfig               `yaml:"auth"`
	Logging   LoggingConfig            `yaml:"logging"`
	Transport TransportConfig          `yaml:"transport"`
	Store     StoreConfig              `yaml:"store"`
	Server    ServerConfig             `yaml:"server"`
	Requests  map[string]RequestConfig `yaml:"requests"`
}

// RetryConfig holds settings for retry logic.
type RetryConfig struct {
	MaxAttempts   int   `yaml:"max_attempts"`
	Backoff       int   `yaml:"backoff_seconds"`
	ExcludeErrors []int `yaml:"exclude_errors"`
}

// AuthConfig holds authentication settings applied by the transport.
type AuthConfig struct {
	Type          string            `yaml:"type"`
	Credentials   map[string]string `yaml:"credentials"`
	TlsSkipVerify bool              `yaml:"tls_skip_verify,omitempty"`
	CookieJar     bool              `yaml:"cookie_jar,omitempty"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// TransportConfig holds outbound request settings.
type TransportConfig struct {
	TimeoutMs int `yaml:"timeout_ms"`
}

// Timeout returns the configured timeout as a duration.
func (t TransportConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// StoreConfig locates the saved data-source templates.
type StoreConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig holds the HTTP API listen address.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Modes, locations and body types.
const (
	ModeClient = "client"
	ModeServer = "server"

	LocationQuery = "query"
	LocationBody  = "body"

	BodyJSON = "json"
	BodyText = "text"
	BodyForm = "form"

	ConditionSimple    = "simple"
	ConditionComposite = "composite"

	LogicAnd = "and"
	LogicOr  = "or"

	DefaultTargetFieldKey = "conditions"
)

// Variable types.
const (
	TypeString   = "string"
	TypeNumber   = "number"
	TypeBoolean  = "boolean"
	TypeObject   = "object"
	TypeOperator = "operator"
)

// RequestConfig is the declarative description of one request panel.
// Header and param lists may hold duplicate names; mappers update the first match.
type RequestConfig struct {
	Method          string            `yaml:"method" json:"method"`
	URL             string            `yaml:"url" json:"url"`
	Headers         []Header          `yaml:"headers,omitempty" json:"headers,omitempty"`
	Params          []QueryParam      `yaml:"params,omitempty" json:"params,omitempty"`
	Body            string            `yaml:"body,omitempty" json:"body,omitempty"`
	BodyType        string            `yaml:"body_type,omitempty" json:"bodyType,omitempty"`
	TransformerPath string            `yaml:"transformer_path,omitempty" json:"transformerPath,omitempty"`
	Pagination      PaginationMapping `yaml:"pagination" json:"pagination"`
	Sort            SortMapping       `yaml:"sort" json:"sort"`
	Filter          FilterMapping     `yaml:"filter" json:"filter"`
	Variables       []Variable        `yaml:"variables,omitempty" json:"variables,omitempty"`
}

// Header is one request header row.
type Header struct {
	Name    string `yaml:"name" json:"name"`
	Value   string `yaml:"value" json:"value"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

// QueryParam is one query parameter row.
type QueryParam struct {
	Name    string `yaml:"name" json:"name"`
	Value   string `yaml:"value" json:"value"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

// PaginationMapping maps pagination state to request fields and back from response paths.
type PaginationMapping struct {
	Mode           string          `yaml:"mode" json:"mode"`
	Location       string          `yaml:"location" json:"location"`
	CurrentPage    PaginationField `yaml:"current_page" json:"currentPage"`
	PageSize       PaginationField `yaml:"page_size" json:"pageSize"`
	Total          PaginationField `yaml:"total" json:"total"`
	TotalPages     PaginationField `yaml:"total_pages" json:"totalPages"`
	ResponseFields ResponseFields  `yaml:"response_fields" json:"responseFields"`
}

// PaginationField is the outbound binding of one pagination field.
// A blank Variable binds the field to the built-in of the same name.
type PaginationField struct {
	Param    string `yaml:"param" json:"param"`
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Variable string `yaml:"variable,omitempty" json:"variable,omitempty"`
}

// ResponseFields holds the inbound dot paths of each pagination field.
type ResponseFields struct {
	CurrentPage string `yaml:"current_page,omitempty" json:"currentPage,omitempty"`
	PageSize    string `yaml:"page_size,omitempty" json:"pageSize,omitempty"`
	Total       string `yaml:"total,omitempty" json:"total,omitempty"`
	TotalPages  string `yaml:"total_pages,omitempty" json:"totalPages,omitempty"`
}

// SortMapping maps the sorted column and direction to request fields.
type SortMapping struct {
	Mode         string `yaml:"mode" json:"mode"`
	Location     string `yaml:"location" json:"location"`
	FieldKey     string `yaml:"field_key,omitempty" json:"fieldKey,omitempty"`
	DirectionKey string `yaml:"direction_key,omitempty" json:"directionKey,omitempty"`
	AscValue     string `yaml:"asc_value,omitempty" json:"ascValue,omitempty"`
	DescValue    string `yaml:"desc_value,omitempty" json:"descValue,omitempty"`
}

// FilterMapping describes how a filter expression becomes a condition payload.
type FilterMapping struct {
	Mode             string            `yaml:"mode" json:"mode"`
	ConditionMode    string            `yaml:"condition_mode" json:"conditionMode"`
	Location         string            `yaml:"location" json:"location"`
	TargetFieldKey   string            `yaml:"target_field_key" json:"targetFieldKey"`
	LogicModes       []string          `yaml:"logic_modes,omitempty" json:"logicModes,omitempty"`
	ItemTemplate     string            `yaml:"item_template,omitempty" json:"itemTemplate,omitempty"`
	OperatorBindings []OperatorBinding `yaml:"operator_bindings,omitempty" json:"operatorBindings,omitempty"`
}

// OperatorBinding translates a built-in operator name into the third-party token.
type OperatorBinding struct {
	APIOperator     string `yaml:"api_operator" json:"apiOperatorToken"`
	BuiltinOperator string `yaml:"builtin_operator" json:"builtinOperatorName"`
}

// Variable is a named value available to templates and pagination bindings.
// Values are always kept in their string form.
type Variable struct {
	Name    string `yaml:"name" json:"name"`
	Value   string `yaml:"value" json:"value"`
	Type    string `yaml:"type,omitempty" json:"type,omitempty"`
	Source  string `yaml:"source,omitempty" json:"source,omitempty"`
	Scope   string `yaml:"scope,omitempty" json:"scope,omitempty"`
	BuiltIn bool   `yaml:"built_in,omitempty" json:"isBuiltIn,omitempty"`
}

// FieldInfo describes one column inferred from response rows.
type FieldInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// DataSourceTemplate is a saved request configuration snapshot.
type DataSourceTemplate struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"createdAt"`
	Config    RequestConfig `json:"config"`
	Fields    []FieldInfo   `json:"fields"`
}
