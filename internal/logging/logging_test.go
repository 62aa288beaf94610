package logging

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// captureLogs routes Logf into an in-memory observer for the duration of fn.
func captureLogs(t *testing.T, fn func()) []observer.LoggedEntry {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := SetLogger(zap.New(core))
	defer restore()
	fn()
	return logs.AllUntimed()
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		inputStr      string
		expectedLevel int
		expectError   bool
	}{
		{"none", None, false},
		{"NONE", None, false},
		{"error", Error, false},
		{"warn", Warning, false},
		{"WARNING", Warning, false},
		{"info", Info, false},
		{"debug", Debug, false},
		{"DeBuG", Debug, false},
		{"trace", Info, true},
		{"", Info, true},
	}

	for _, tc := range testCases {
		t.Run(tc.inputStr, func(t *testing.T) {
			level, err := ParseLevel(tc.inputStr)
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.expectedLevel, level)
		})
	}
}

func TestSetGetLevel(t *testing.T) {
	originalLevel := GetLevel()
	defer SetLevel(originalLevel)

	for _, level := range []int{None, Error, Warning, Info, Debug} {
		t.Run(fmt.Sprintf("Level_%d", level), func(t *testing.T) {
			SetLevel(level)
			assert.Equal(t, level, GetLevel())
		})
	}
}

func TestSetupLogging(t *testing.T) {
	originalLevel := GetLevel()
	defer SetLevel(originalLevel)

	testCases := []struct {
		inputLevelStr string
		expectedLevel int
	}{
		{"debug", Debug},
		{"info", Info},
		{"warn", Warning},
		{"error", Error},
		{"none", None},
		{"invalid-level", Info},
	}

	for _, tc := range testCases {
		t.Run(tc.inputLevelStr, func(t *testing.T) {
			SetLevel(Warning)

			var actualLevel int
			entries := captureLogs(t, func() {
				actualLevel = SetupLogging(tc.inputLevelStr)
			})

			assert.Equal(t, tc.expectedLevel, actualLevel)
			assert.Equal(t, tc.expectedLevel, GetLevel())

			var warned bool
			for _, e := range entries {
				if e.Level == zapcore.WarnLevel {
					warned = true
					assert.Contains(t, e.Message, "Invalid log level 'invalid-level' provided")
				}
			}
			assert.Equal(t, tc.inputLevelStr == "invalid-level", warned)
		})
	}
}

func TestLogfOutput(t *testing.T) {
	originalLevel := GetLevel()
	defer SetLevel(originalLevel)

	testCases := []struct {
		name          string
		setLevel      int
		logCallLevel  int
		logMessage    string
		args          []interface{}
		expectOutput  bool
		expectedLevel zapcore.Level
	}{
		{"DebugAtDebug", Debug, Debug, "debug message %d", []interface{}{1}, true, zapcore.DebugLevel},
		{"InfoAtDebug", Debug, Info, "info message", nil, true, zapcore.InfoLevel},
		{"WarnAtDebug", Debug, Warning, "warn message", nil, true, zapcore.WarnLevel},
		{"ErrorAtDebug", Debug, Error, "error message", nil, true, zapcore.ErrorLevel},
		{"DebugAtInfo", Info, Debug, "debug message", nil, false, 0},
		{"WarnAtInfo", Info, Warning, "warn message", nil, true, zapcore.WarnLevel},
		{"InfoAtWarning", Warning, Info, "info message", nil, false, 0},
		{"WarnAtError", Error, Warning, "warn message", nil, false, 0},
		{"ErrorAtNone", None, Error, "error message", nil, false, 0},
		{"PercentWithoutArgs", Info, Info, "100% done", nil, true, zapcore.InfoLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			SetLevel(tc.setLevel)

			entries := captureLogs(t, func() {
				Logf(tc.logCallLevel, tc.logMessage, tc.args...)
			})

			if !tc.expectOutput {
				assert.Empty(t, entries)
				return
			}
			require.Len(t, entries, 1)
			expected := tc.logMessage
			if len(tc.args) > 0 {
				expected = fmt.Sprintf(tc.logMessage, tc.args...)
			}
			assert.Equal(t, expected, entries[0].Message)
			assert.Equal(t, tc.expectedLevel, entries[0].Level)
		})
	}
}

func TestConfigureWritesRotatedFile(t *testing.T) {
	originalLevel := GetLevel()
	defer SetLevel(originalLevel)

	prev := base.Load()
	defer base.Store(prev)

	path := filepath.Join(t.TempDir(), "apimapper.log")
	Configure(Options{Format: "json", FilePath: path, MaxSizeMB: 1})
	SetLevel(Info)
	Logf(Info, "written to %s", "file")
	Sync()

	assert.FileExists(t, path)
}
