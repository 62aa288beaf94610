package logging

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log levels
const (
	None    = 0
	Error   = 1
	Warning = 2
	Info    = 3
	Debug   = 4
)

// Options controls where and how log lines are written.
type Options struct {
	Format     string // "console" (default) or "json"
	FilePath   string // optional rotated log file, in addition to stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	currentLevel atomic.Int32
	base         atomic.Pointer[zap.Logger]
)

func init() {
	currentLevel.Store(Info)
	base.Store(newLogger(Options{}))
}

// newLogger builds the zap logger behind Logf. Level gating happens in Logf,
// so every core is opened at debug.
func newLogger(opts Options) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		CallerKey:      "caller",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if strings.EqualFold(opts.Format, "json") {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapcore.DebugLevel),
	}
	if opts.FilePath != "" {
		writer := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(writer), zapcore.DebugLevel))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
}

// Configure replaces the output sinks. The current level is left untouched.
func Configure(opts Options) {
	old := base.Swap(newLogger(opts))
	if old != nil {
		_ = old.Sync()
	}
}

// SetLogger installs an arbitrary zap logger and returns a function that
// restores the previous one. Used by tests to observe output.
func SetLogger(l *zap.Logger) (restore func()) {
	prev := base.Swap(l)
	return func() { base.Store(prev) }
}

// Sync flushes buffered log entries.
func Sync() {
	if l := base.Load(); l != nil {
		_ = l.Sync()
	}
}

// SetLevel sets the global logging level.
func SetLevel(level int) {
	currentLevel.Store(int32(level))
	Logf(Debug, "Log level set to %d", level)
}

// GetLevel returns the current logging level.
func GetLevel() int {
	return int(currentLevel.Load())
}

// ParseLevel converts a string level to an integer level.
func ParseLevel(levelStr string) (int, error) {
	switch strings.ToLower(levelStr) {
	case "none":
		return None, nil
	case "error":
		return Error, nil
	case "warn", "warning":
		return Warning, nil
	case "info":
		return Info, nil
	case "debug":
		return Debug, nil
	default:
		return Info, fmt.Errorf("invalid log level string: '%s'", levelStr)
	}
}

// SetupLogging initializes logging based on a level string.
// Returns the integer log level corresponding to the string.
func SetupLogging(levelStr string) int {
	level, err := ParseLevel(levelStr)
	if err != nil {
		Logf(Warning, "Invalid log level '%s' provided, defaulting to 'info'. %v", levelStr, err)
		level = Info
	}
	SetLevel(level)
	return level
}

// Logf logs a formatted message if the given level is high enough.
func Logf(level int, format string, v ...interface{}) {
	if level <= None || int32(level) > currentLevel.Load() {
		return
	}
	msg := format
	if len(v) > 0 {
		msg = fmt.Sprintf(format, v...)
	}
	l := base.Load()
	switch level {
	case Error:
		l.Error(msg)
	case Warning:
		l.Warn(msg)
	case Info:
		l.Info(msg)
	default:
		l.Debug(msg)
	}
}
