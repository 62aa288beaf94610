package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"apimapper/internal/config"
	"apimapper/internal/executor"
	"apimapper/internal/logging"
	"apimapper/internal/store"
)

// Define common errors for the application layer.
var (
	ErrUsage           = errors.New("usage error")
	ErrConfigNotFound  = errors.New("configuration file not found")
	ErrMissingArgs     = errors.New("missing required arguments")
	ErrRequestNotFound = errors.New("request not found in configuration")
)

// Setting keys shared by flags, environment and viper.
const (
	keyConfig   = "config"
	keyLogLevel = "loglevel"
	keyStoreDir = "store-dir"
	keyAddr     = "addr"

	envPrefix         = "APIMAPPER"
	defaultConfigFile = "config.yaml"
	defaultStoreDir   = ".apimapper/templates"
)

// --- Interfaces for Testability ---

// configLoader defines the interface for loading configuration.
type configLoader interface {
	Load(filename string) (*config.Config, error)
}

// senderFactory builds the transport used to execute requests.
type senderFactory interface {
	New(cfg *config.Config) (executor.Sender, error)
}

// --- Default Implementations ---

type defaultConfigLoader struct{}

func (l *defaultConfigLoader) Load(filename string) (*config.Config, error) {
	return config.LoadConfig(filename)
}

type defaultSenderFactory struct{}

func (f *defaultSenderFactory) New(cfg *config.Config) (executor.Sender, error) {
	return executor.NewHTTPSender(cfg)
}

// --- AppRunner ---

// AppRunner encapsulates the application's execution logic and dependencies.
type AppRunner struct {
	configLoader  configLoader
	senderFactory senderFactory
	stdout        io.Writer
	stderr        io.Writer

	settings *viper.Viper
	cfg      *config.Config
}

// AppRunnerOpts allows configuring the AppRunner's dependencies.
type AppRunnerOpts struct {
	ConfigLoader  configLoader
	SenderFactory senderFactory
	Stdout        io.Writer
	Stderr        io.Writer
}

// NewAppRunner creates a new instance of the application runner with default dependencies.
func NewAppRunner() *AppRunner {
	return NewAppRunnerWithOpts(AppRunnerOpts{})
}

// NewAppRunnerWithOpts creates a new AppRunner allowing dependency injection.
func NewAppRunnerWithOpts(opts AppRunnerOpts) *AppRunner {
	a := &AppRunner{
		configLoader:  opts.ConfigLoader,
		senderFactory: opts.SenderFactory,
		stdout:        opts.Stdout,
		stderr:        opts.Stderr,
	}
	if a.configLoader == nil {
		a.configLoader = &defaultConfigLoader{}
	}
	if a.senderFactory == nil {
		a.senderFactory = &defaultSenderFactory{}
	}
	if a.stdout == nil {
		a.stdout = os.Stdout
	}
	if a.stderr == nil {
		a.stderr = os.Stderr
	}
	return a
}

// Usage prints the command-line help information to the specified writer.
func (a *AppRunner) Usage(writer io.Writer) {
	root := a.newRootCommand()
	root.SetOut(writer)
	_ = root.Usage()
}

// Run parses command-line arguments and executes the selected command.
func (a *AppRunner) Run(args []string) error {
	return a.RunContext(context.Background(), args)
}

// RunContext is Run with a caller-supplied context.
func (a *AppRunner) RunContext(ctx context.Context, args []string) error {
	a.cfg = nil
	root := a.newRootCommand()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		if isCobraUsageError(err) {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		return err
	}
	return nil
}

// isCobraUsageError recognizes flag and command parsing errors, which cobra
// does not type.
func isCobraUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "invalid argument", "flag needs an argument"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

// newSettings binds the persistent flags to a fresh viper instance that also
// reads APIMAPPER_* environment variables.
func newSettings(root *cobra.Command) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault(keyConfig, defaultConfigFile)
	v.SetDefault(keyLogLevel, "info")

	// Bind flags to viper (errors are nil when flag exists)
	_ = v.BindPFlag(keyConfig, root.PersistentFlags().Lookup(keyConfig))
	_ = v.BindPFlag(keyLogLevel, root.PersistentFlags().Lookup(keyLogLevel))
	_ = v.BindPFlag(keyStoreDir, root.PersistentFlags().Lookup(keyStoreDir))
	return v
}

// setupLogging applies the flag or environment level first, falling back to
// the config file level.
func (a *AppRunner) setupLogging() {
	levelStr := a.settings.GetString(keyLogLevel)
	if !a.settings.IsSet(keyLogLevel) && a.cfg != nil && a.cfg.Logging.Level != "" {
		levelStr = a.cfg.Logging.Level
	}
	if a.cfg != nil {
		lc := a.cfg.Logging
		logging.Configure(logging.Options{
			Format:     lc.Format,
			FilePath:   lc.File,
			MaxSizeMB:  lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAgeDays: lc.MaxAgeDays,
		})
	}
	logging.SetupLogging(levelStr)
}

// loadConfig reads the configuration file once per run.
func (a *AppRunner) loadConfig() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	configFile := a.settings.GetString(keyConfig)
	if _, err := os.Stat(configFile); err != nil {
		if os.IsNotExist(err) {
			logging.Logf(logging.Error, "Configuration file '%s' not found.", configFile)
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to stat config file '%s': %w", configFile, err)
	}

	cfg, err := a.configLoader.Load(configFile)
	if err != nil {
		logging.Logf(logging.Error, "Error loading configuration '%s': %v", configFile, err)
		return nil, err
	}
	a.cfg = cfg
	a.setupLogging()
	return cfg, nil
}

// requestConfig looks up a named request.
func (a *AppRunner) requestConfig(name string) (*config.Config, config.RequestConfig, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, config.RequestConfig{}, err
	}
	rc, ok := cfg.Requests[name]
	if !ok {
		return nil, config.RequestConfig{}, fmt.Errorf("%w: '%s'", ErrRequestNotFound, name)
	}
	return cfg, rc, nil
}

// openStore resolves the template directory from the flag or environment,
// then the config file, then the built-in default.
func (a *AppRunner) openStore() (*store.FileStore, error) {
	dir := a.settings.GetString(keyStoreDir)
	if dir == "" {
		if cfg, err := a.loadConfig(); err == nil {
			dir = cfg.Store.Dir
		} else if !errors.Is(err, ErrConfigNotFound) {
			return nil, err
		}
	}
	if dir == "" {
		dir = defaultStoreDir
	}
	return store.NewFileStore(dir)
}
