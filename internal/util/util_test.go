package util

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnvUniversal(t *testing.T) {
	t.Setenv("UNIX_VAR", "unix_value")
	t.Setenv("WIN_VAR", "win_value")
	t.Setenv("MIXED_VAR", "mixed_value")
	os.Unsetenv("UNDEFINED_VAR")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"No Vars", "Just a string", "Just a string"},
		{"Unix Var Simple", "Hello $UNIX_VAR", "Hello unix_value"},
		{"Unix Var Brace", "Input: ${UNIX_VAR}!", "Input: unix_value!"},
		{"Windows Var", "Got %WIN_VAR%", "Got win_value"},
		{"Mixed Vars", "$UNIX_VAR-%WIN_VAR%-${MIXED_VAR}", "unix_value-win_value-mixed_value"},
		{"Undefined Unix Var", "Val: $UNDEFINED_VAR", "Val: "},
		{"Undefined Windows Var", "Val: %UNDEFINED_VAR%", "Val: "},
		{"URL With Token", "https://api.test/v1?key=${UNIX_VAR}", "https://api.test/v1?key=unix_value"},
		{"Empty Input", "", ""},
		{"Percent Sign Not Var", "A 50% sign", "A 50% sign"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpandEnvUniversal(tt.input))
		})
	}
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"Nil input", nil, ""},
		{"Short input", []byte("hello world"), "hello world"},
		{"Exact max length", []byte(strings.Repeat("x", 200)), strings.Repeat("x", 200)},
		{"Long input", []byte(strings.Repeat("a", 300)), strings.Repeat("a", 200) + "..."},
		{"Multi-byte under rune limit", []byte(strings.Repeat("世", 150)), strings.Repeat("世", 150)},
		{"Multi-byte over rune limit", []byte(strings.Repeat("界", 201)), strings.Repeat("界", 200) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Snippet(tt.input))
		})
	}
}

func TestLooksLikeJSON(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"", false},
		{`{"key": "value"}`, true},
		{`[1, 2, 3]`, true},
		{`  {"a": 1}  `, true},
		{`{}`, true},
		{`{"key":`, false},
		{`hello world`, false},
		{`123.45`, false},
		{`{"a": 1]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, LooksLikeJSON(tt.input))
		})
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{"nil", nil, ""},
		{"string", "active", "active"},
		{"integral float", float64(20), "20"},
		{"fraction", 2.5, "2.5"},
		{"int", 7, "7"},
		{"bool", true, "true"},
		{"json number", json.Number("42"), "42"},
		{"slice", []interface{}{"a", float64(1)}, `["a",1]`},
		{"map", map[string]interface{}{"b": float64(1), "a": "x"}, `{"a":"x","b":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Stringify(tt.input))
		})
	}
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected float64
		ok       bool
	}{
		{"float", float64(57), 57, true},
		{"numeric string", " 20 ", 20, true},
		{"json number", json.Number("3.5"), 3.5, true},
		{"empty string", "", 0, false},
		{"word", "twenty", 0, false},
		{"NaN string", "NaN", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
		{"object", map[string]interface{}{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := ToNumber(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, n)
		})
	}
}
