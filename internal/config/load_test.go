package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create a temporary config file for testing
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	filePath := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(filePath, []byte(content), 0644)
	require.NoError(t, err, "Failed to create temporary config file")
	return filePath
}

func TestLoadConfig_ValidCases(t *testing.T) {
	t.Run("Minimal Valid Config", func(t *testing.T) {
		validYAML := `
requests:
  users:
    url: https://api.example.com/users
`
		cfg, err := LoadConfig(createTempConfigFile(t, validYAML))
		require.NoError(t, err)
		require.NotNil(t, cfg)
		assert.Equal(t, 1, cfg.Retry.MaxAttempts)
		assert.Equal(t, 1, cfg.Retry.Backoff)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, 30000, cfg.Transport.TimeoutMs)
		assert.NotEmpty(t, cfg.Store.Dir)
		assert.NotEmpty(t, cfg.Server.Addr)

		rc := cfg.Requests["users"]
		assert.Equal(t, "GET", rc.Method)
		assert.Equal(t, BodyJSON, rc.BodyType)
		assert.Equal(t, ModeClient, rc.Pagination.Mode)
		assert.Equal(t, LocationQuery, rc.Pagination.Location)
		assert.Equal(t, ConditionSimple, rc.Filter.ConditionMode)
		assert.Equal(t, DefaultTargetFieldKey, rc.Filter.TargetFieldKey)
		assert.Empty(t, rc.Sort.AscValue, "direction literals fall back at use time")
	})

	t.Run("Full Server Mode Request", func(t *testing.T) {
		validYAML := `
retry: { max_attempts: 3, backoff_seconds: 2 }
logging: { level: debug, format: json }
auth:
  type: basic
  credentials: { username: u, password: p }
transport: { timeout_ms: 5000 }
requests:
  orders:
    method: post
    url: https://api.example.com/orders/search
    body_type: json
    body: '{"scope":"all"}'
    transformer_path: data.items
    headers:
      - { name: X-Tenant, value: acme, enabled: true }
    pagination:
      mode: server
      location: body
      current_page: { param: page, enabled: true }
      page_size: { param: limit, enabled: true }
      response_fields:
        total: response.data.meta.totalCount
    sort:
      mode: server
      field_key: sortBy
      direction_key: sortDir
      asc_value: "1"
      desc_value: "-1"
    filter:
      mode: server
      condition_mode: composite
      location: body
      logic_modes: [AND, or]
      item_template: '{"column":"{{filter.field}}","operator":"{{eq}}","value":"{{filter.value}}"}'
      operator_bindings:
        - { api_operator: "=", builtin_operator: eq }
    variables:
      - { name: tenant, value: acme }
`
		cfg, err := LoadConfig(createTempConfigFile(t, validYAML))
		require.NoError(t, err)

		rc := cfg.Requests["orders"]
		assert.Equal(t, "POST", rc.Method)
		assert.Equal(t, 5000, cfg.Transport.TimeoutMs)
		assert.Equal(t, "page", rc.Pagination.CurrentPage.Param)
		assert.True(t, rc.Pagination.PageSize.Enabled)
		assert.Equal(t, "response.data.meta.totalCount", rc.Pagination.ResponseFields.Total)
		assert.Equal(t, []string{"and", "or"}, rc.Filter.LogicModes)
		require.Len(t, rc.Filter.OperatorBindings, 1)
		assert.Equal(t, "=", rc.Filter.OperatorBindings[0].APIOperator)
		assert.Equal(t, TypeString, rc.Variables[0].Type)
	})
}

func TestLoadConfig_ErrorCases(t *testing.T) {
	testCases := []struct {
		name        string
		yaml        string
		errContains []string
	}{
		{
			name:        "Malformed YAML",
			yaml:        "requests: [",
			errContains: []string{"failed to parse YAML"},
		},
		{
			name: "Missing URL and bad method",
			yaml: `
requests:
  r: { method: FETCH }
`,
			errContains: []string{"Config.Requests[r].URL: is required", "invalid HTTP method 'FETCH'"},
		},
		{
			name: "Bad enums",
			yaml: `
requests:
  r:
    url: https://x.test
    body_type: xml
    pagination: { mode: remote }
    sort: { location: header }
    filter: { condition_mode: fancy, logic_modes: [xor] }
`,
			errContains: []string{"invalid body type 'xml'", "invalid mode 'remote'", "invalid location 'header'", "invalid condition mode 'fancy'", "invalid logic mode 'xor'"},
		},
		{
			name: "Composite without template",
			yaml: `
requests:
  r:
    url: https://x.test
    filter: { condition_mode: composite }
`,
			errContains: []string{"ItemTemplate: is required"},
		},
		{
			name: "Pagination issues",
			yaml: `
requests:
  r:
    url: https://x.test
    pagination:
      mode: server
      current_page: { param: p, enabled: true, variable: nope }
      page_size: { param: p, enabled: true }
      total: { enabled: true }
`,
			errContains: []string{"'nope' is neither a pagination built-in", "'p' is already used by currentPage", "total.Param: is required"},
		},
		{
			name: "Duplicate variables",
			yaml: `
requests:
  r:
    url: https://x.test
    variables:
      - { name: a, value: "1" }
      - { name: a, value: "2", type: weird }
`,
			errContains: []string{"duplicate variable name 'a'", "invalid variable type 'weird'"},
		},
		{
			name: "Auth missing credentials",
			yaml: `
auth: { type: oauth2, credentials: { client_id: id } }
`,
			errContains: []string{"'client_secret'", "'token_url'"},
		},
		{
			name: "Non http scheme",
			yaml: `
requests:
  r: { url: "ftp://x.test/file" }
`,
			errContains: []string{"invalid URL scheme 'ftp'"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(createTempConfigFile(t, tc.yaml))
			require.Error(t, err)
			for _, s := range tc.errContains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})
}

func TestRequestConfigClone(t *testing.T) {
	orig := RequestConfig{
		Params:    []QueryParam{{Name: "a", Value: "1", Enabled: true}},
		Headers:   []Header{{Name: "X", Value: "y", Enabled: true}},
		Variables: []Variable{{Name: "v", Value: "1"}},
		Filter:    FilterMapping{LogicModes: []string{"and"}},
	}
	c := orig.Clone()
	c.Params[0].Value = "2"
	c.Headers[0].Value = "z"
	c.Variables[0].Value = "2"
	c.Filter.LogicModes[0] = "or"

	assert.Equal(t, "1", orig.Params[0].Value)
	assert.Equal(t, "y", orig.Headers[0].Value)
	assert.Equal(t, "1", orig.Variables[0].Value)
	assert.Equal(t, "and", orig.Filter.LogicModes[0])
}

func TestValidateRequest(t *testing.T) {
	rc := RequestConfig{URL: "https://${APIMAPPER_TEST_HOST}/v1"}
	t.Setenv("APIMAPPER_TEST_HOST", "api.example.com")
	ApplyRequestDefaults(&rc)
	assert.NoError(t, ValidateRequest(&rc))

	rc.Sort.FieldKey = "k"
	rc.Sort.DirectionKey = "k"
	err := ValidateRequest(&rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be the same")
}
