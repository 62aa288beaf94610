package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"apimapper/internal/config"
	"apimapper/internal/executor"
	"apimapper/internal/mapping"
	"apimapper/internal/state"
)

// --- Mocks ---

// mockConfigLoader allows controlling config loading results.
type mockConfigLoader struct {
	mock.Mock
}

func (m *mockConfigLoader) Load(filename string) (*config.Config, error) {
	args := m.Called(filename)
	cfg, _ := args.Get(0).(*config.Config)
	return cfg, args.Error(1)
}

// mockSender records descriptors and returns canned responses.
type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, d mapping.Descriptor) (*mapping.Response, error) {
	args := m.Called(ctx, d)
	resp, _ := args.Get(0).(*mapping.Response)
	return resp, args.Error(1)
}

// mockSenderFactory hands out the configured sender.
type mockSenderFactory struct {
	mock.Mock
}

func (m *mockSenderFactory) New(cfg *config.Config) (executor.Sender, error) {
	args := m.Called(cfg)
	s, _ := args.Get(0).(executor.Sender)
	return s, args.Error(1)
}

// Helper to create a temporary config file
func createTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test_config.yaml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}

func usersConfig() *config.Config {
	rc := config.RequestConfig{
		Method:          "GET",
		URL:             "https://api.example.com/users",
		TransformerPath: "items",
		Pagination: config.PaginationMapping{
			Mode:           config.ModeServer,
			CurrentPage:    config.PaginationField{Param: "page", Enabled: true},
			PageSize:       config.PaginationField{Param: "limit", Enabled: true},
			ResponseFields: config.ResponseFields{Total: "meta.totalCount"},
		},
		Sort: config.SortMapping{Mode: config.ModeServer},
		Filter: config.FilterMapping{
			Mode:           config.ModeServer,
			Location:       config.LocationQuery,
			TargetFieldKey: "q",
		},
	}
	config.ApplyRequestDefaults(&rc)
	return &config.Config{
		Retry:    config.RetryConfig{MaxAttempts: 1, Backoff: 1},
		Logging:  config.LoggingConfig{Level: "info"},
		Requests: map[string]config.RequestConfig{"users": rc},
	}
}

type harness struct {
	runner  *AppRunner
	loader  *mockConfigLoader
	factory *mockSenderFactory
	sender  *mockSender
	out     *bytes.Buffer
	cfgFile string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		loader:  new(mockConfigLoader),
		factory: new(mockSenderFactory),
		sender:  new(mockSender),
		out:     new(bytes.Buffer),
		cfgFile: createTempYAML(t, "requests: {}\n"),
	}
	h.runner = NewAppRunnerWithOpts(AppRunnerOpts{
		ConfigLoader:  h.loader,
		SenderFactory: h.factory,
		Stdout:        h.out,
		Stderr:        new(bytes.Buffer),
	})
	return h
}

func (h *harness) run(args ...string) error {
	h.out.Reset()
	return h.runner.Run(append([]string{"--config", h.cfgFile}, args...))
}

// --- Tests ---

func TestAppRunner_Run_Help(t *testing.T) {
	h := newHarness(t)

	for _, args := range [][]string{{}, {"--help"}, {"run", "--help"}} {
		h.out.Reset()
		err := h.runner.Run(args)
		require.NoError(t, err, "help for %v should not fail", args)
		assert.Contains(t, h.out.String(), "Usage:")
	}

	var usage bytes.Buffer
	h.runner.Usage(&usage)
	assert.Contains(t, usage.String(), "apimapper")
	h.loader.AssertNotCalled(t, "Load", mock.Anything)
}

func TestAppRunner_Run_FlagErrors(t *testing.T) {
	runner := NewAppRunnerWithOpts(AppRunnerOpts{Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)})

	testCases := []struct {
		name          string
		args          []string
		expectedError error
	}{
		{"Invalid Flag", []string{"--invalid-flag"}, ErrUsage},
		{"Flag Needs Argument", []string{"--config"}, ErrUsage},
		{"Unknown Command", []string{"bogus"}, ErrUsage},
		{"Run Without Request", []string{"run"}, ErrMissingArgs},
		{"Template Save One Arg", []string{"template", "save", "users"}, ErrMissingArgs},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := runner.Run(tc.args)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.expectedError)
		})
	}
}

func TestAppRunner_Run_ConfigErrors(t *testing.T) {
	h := newHarness(t)

	t.Run("Config Not Found", func(t *testing.T) {
		err := h.runner.Run([]string{"--config", "nonexistent.yaml", "run", "users"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfigNotFound)
		h.loader.AssertNotCalled(t, "Load", mock.Anything)
	})

	t.Run("Config Load Error", func(t *testing.T) {
		loadErr := errors.New("mock yaml parse error")
		h.loader.On("Load", h.cfgFile).Return(nil, loadErr).Once()

		err := h.run("preview", "users")
		require.Error(t, err)
		assert.Contains(t, err.Error(), loadErr.Error())
		h.loader.AssertExpectations(t)
	})

	t.Run("Request Not Found", func(t *testing.T) {
		h.loader.On("Load", h.cfgFile).Return(usersConfig(), nil).Once()

		err := h.run("preview", "orders")
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestAppRunner_Run_ConfigFromEnvironment(t *testing.T) {
	h := newHarness(t)
	t.Setenv("APIMAPPER_CONFIG", h.cfgFile)
	h.loader.On("Load", h.cfgFile).Return(usersConfig(), nil).Once()

	require.NoError(t, h.runner.Run([]string{"preview", "users"}))
	h.loader.AssertExpectations(t)
}

func TestAppRunner_Preview(t *testing.T) {
	h := newHarness(t)
	h.loader.On("Load", h.cfgFile).Return(usersConfig(), nil).Once()

	err := h.run("preview", "users", "--page", "2", "--size", "20", "--sort", "age:descend",
		"--filter", `{"field":"status","op":"eq","value":"active"}`, "--submit")
	require.NoError(t, err)

	var out struct {
		Request  mapping.Descriptor `json:"request"`
		Warnings []string           `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &out))
	assert.ElementsMatch(t, []mapping.Param{
		{Name: "page", Value: "2"},
		{Name: "limit", Value: "20"},
		{Name: "age", Value: "desc"},
		{Name: "q", Value: `{"field":"status","op":"eq","value":"active"}`},
	}, out.Request.Params)
	assert.Empty(t, out.Warnings)
	h.factory.AssertNotCalled(t, "New", mock.Anything)
}

func TestAppRunner_Run_ExecutesAndNormalizes(t *testing.T) {
	h := newHarness(t)
	cfg := usersConfig()
	h.loader.On("Load", h.cfgFile).Return(cfg, nil).Once()
	h.factory.On("New", cfg).Return(h.sender, nil).Once()
	h.sender.On("Send", mock.Anything, mock.MatchedBy(func(d mapping.Descriptor) bool {
		full, err := d.FullURL()
		return err == nil && strings.Contains(full, "page=3")
	})).Return(&mapping.Response{
		Status: 200,
		Data: map[string]interface{}{
			"items": []interface{}{map[string]interface{}{"id": 1.0}},
			"meta":  map[string]interface{}{"totalCount": 41.0},
		},
	}, nil).Once()

	require.NoError(t, h.run("run", "users", "--page", "3"))

	var res mapping.Result
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &res))
	assert.Len(t, res.Rows, 1)
	assert.Equal(t, 41, res.Pagination.Total)
	assert.Equal(t, 3, res.Pagination.Current)
	h.factory.AssertExpectations(t)
	h.sender.AssertExpectations(t)
}

func TestAppRunner_Run_SenderFactoryFails(t *testing.T) {
	h := newHarness(t)
	cfg := usersConfig()
	h.loader.On("Load", h.cfgFile).Return(cfg, nil).Once()
	h.factory.On("New", cfg).Return(nil, errors.New("bad auth")).Once()

	err := h.run("run", "users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad auth")
}

func TestAppRunner_Conditions(t *testing.T) {
	h := newHarness(t)
	cfg := usersConfig()
	rc := cfg.Requests["users"]
	rc.Filter.ConditionMode = config.ConditionComposite
	rc.Filter.Location = config.LocationBody
	rc.Filter.ItemTemplate = `{"c":"{{filter.field}}","v":"{{filter.value}}"}`
	cfg.Requests["users"] = rc
	h.loader.On("Load", h.cfgFile).Return(cfg, nil).Once()

	err := h.run("conditions", "users", "--filter", `[{"field":"a","op":"eq","value":"x"},{"field":"b","op":"eq","value":"y"}]`)
	require.NoError(t, err)

	var sub mapping.FilterSubmission
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &sub))
	assert.Equal(t, "q", sub.TargetFieldKey)
	assert.Equal(t, []interface{}{
		map[string]interface{}{"c": "a", "v": "x"},
		map[string]interface{}{"c": "b", "v": "y"},
	}, sub.Conditions)
}

func TestAppRunner_Conditions_InvalidFilter(t *testing.T) {
	h := newHarness(t)
	h.loader.On("Load", h.cfgFile).Return(usersConfig(), nil).Once()

	err := h.run("conditions", "users", "--filter", "{nope")
	assert.ErrorIs(t, err, ErrUsage)
}

func TestAppRunner_Templates(t *testing.T) {
	h := newHarness(t)
	storeDir := filepath.Join(t.TempDir(), "templates")
	h.loader.On("Load", h.cfgFile).Return(usersConfig(), nil)

	require.NoError(t, h.run("--store-dir", storeDir, "template", "save", "users", "Users table"))
	var saved config.DataSourceTemplate
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &saved))
	require.NotEmpty(t, saved.ID)
	assert.Equal(t, "Users table", saved.Name)

	require.NoError(t, h.run("--store-dir", storeDir, "template", "list"))
	assert.Contains(t, h.out.String(), "Users table")
	assert.Contains(t, h.out.String(), saved.ID)

	require.NoError(t, h.run("--store-dir", storeDir, "template", "show", saved.ID))
	assert.Contains(t, h.out.String(), `"url": "https://api.example.com/users"`)

	require.NoError(t, h.run("--store-dir", storeDir, "template", "delete", saved.ID))
	assert.Contains(t, h.out.String(), "deleted")

	err := h.run("--store-dir", storeDir, "template", "show", saved.ID)
	assert.Error(t, err)
}

func TestAppRunner_TemplateSaveWithFetch(t *testing.T) {
	h := newHarness(t)
	storeDir := filepath.Join(t.TempDir(), "templates")
	cfg := usersConfig()
	h.loader.On("Load", h.cfgFile).Return(cfg, nil).Once()
	h.factory.On("New", cfg).Return(h.sender, nil).Once()
	h.sender.On("Send", mock.Anything, mock.Anything).Return(&mapping.Response{
		Status: 200,
		Data:   map[string]interface{}{"items": []interface{}{map[string]interface{}{"id": 1.0, "name": "Ann"}}},
	}, nil).Once()

	require.NoError(t, h.run("--store-dir", storeDir, "template", "save", "users", "fetched", "--fetch"))
	var saved config.DataSourceTemplate
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &saved))
	assert.ElementsMatch(t, []config.FieldInfo{{Name: "id", Type: "number"}, {Name: "name", Type: "string"}}, saved.Fields)
}

func TestParseSort(t *testing.T) {
	testCases := []struct {
		in      string
		want    *state.Sort
		wantErr bool
	}{
		{"", nil, false},
		{"age:ascend", &state.Sort{Field: "age", Order: state.Ascend}, false},
		{"team.id:desc", &state.Sort{Field: "team.id", Order: state.Descend}, false},
		{"a:b:ASC", &state.Sort{Field: "a:b", Order: state.Ascend}, false},
		{"age", nil, true},
		{":ascend", nil, true},
		{"age:", nil, true},
		{"age:sideways", nil, true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseSort(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUsage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
