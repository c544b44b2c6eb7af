// Package config provides layered configuration resolution for deliver.
//
// Settings merge from three layers in increasing precedence: built-in
// defaults, the optional project file (.deliver/config.yml), and runtime
// overrides supplied at invocation. The merged view is immutable for the
// remainder of the run.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonlambert/deliver/internal/errors"
)

// Mode names accepted for the run-wide execution mode.
const (
	ModeCompact = "compact"
	ModeVerbose = "verbose"
	ModeDebug   = "debug"
	ModeTest    = "test"
)

// Config is the effective, merged configuration for one run. No component
// mutates it after Load returns.
type Config struct {
	App        string        `mapstructure:"app"`         // Application name
	Hosts      string        `mapstructure:"hosts"`       // Raw host list (comma/space separated)
	User       string        `mapstructure:"user"`        // Deploy user
	Branch     string        `mapstructure:"branch"`      // Branch to deploy
	Strategy   string        `mapstructure:"strategy"`    // Deploy strategy name
	Supervisor string        `mapstructure:"supervisor"`  // Process supervisor name
	SSHTimeout time.Duration `mapstructure:"ssh-timeout"` // Connection-setup timeout
	Mode       string        `mapstructure:"mode"`        // Execution mode
	LogLevel   string        `mapstructure:"log-level"`   // Log level (debug, info, error)
	LogFormat  string        `mapstructure:"log-format"`  // Log format (json, text)
	LogFile    string        `mapstructure:"log-file"`    // Run log destination
	Quiet      bool          `mapstructure:"quiet"`       // Suppress non-error output
}

// requiredKeys must be non-empty after the merge or the run fails validation.
var requiredKeys = []string{"app", "hosts"}

// optionalKeys fall back to built-in defaults.
var optionalKeys = []string{"user", "branch", "strategy", "supervisor", "ssh-timeout", "mode"}

// Manager defines the interface for configuration resolution
type Manager interface {
	// Load merges defaults, the project file, and runtime overrides into
	// one effective configuration. Missing required keys surface as a
	// single MissingRequiredConfigError naming every missing key.
	Load(overrides map[string]any) (*Config, error)

	// Check performs the same merge but reports per-key results instead
	// of failing on the first problem.
	Check(overrides map[string]any) ([]CheckResult, error)
}

// CheckResult is one row of the check-mode table.
type CheckResult struct {
	Key      string
	Value    string
	Required bool
	OK       bool
}

// ViperManager implements Manager using Viper
type ViperManager struct {
	v           *viper.Viper
	projectFile string
}

// NewManager creates a configuration manager reading the default project
// file location.
func NewManager() *ViperManager {
	return &ViperManager{
		v:           viper.New(),
		projectFile: ".deliver/config.yml",
	}
}

// NewManagerWithFile creates a configuration manager reading an explicit
// project file path. Used by tests and the --config flag.
func NewManagerWithFile(path string) *ViperManager {
	return &ViperManager{
		v:           viper.New(),
		projectFile: path,
	}
}

// setDefaults establishes built-in default values.
func (m *ViperManager) setDefaults() {
	m.v.SetDefault("user", "deploy")
	m.v.SetDefault("branch", "master")
	m.v.SetDefault("strategy", "remote")
	m.v.SetDefault("supervisor", "systemd")
	m.v.SetDefault("ssh-timeout", 30*time.Second)
	m.v.SetDefault("mode", ModeCompact)
	m.v.SetDefault("log-level", "info")
	m.v.SetDefault("log-format", "text")
	m.v.SetDefault("log-file", ".deliver/log")
	m.v.SetDefault("quiet", false)
}

// merge applies all layers in precedence order. The runtime overrides are
// snapshotted first and re-applied last through viper's override layer so
// invocation-time values always win over the file and environment.
func (m *ViperManager) merge(overrides map[string]any) error {
	snapshot := make(map[string]any, len(overrides))
	for k, v := range overrides {
		snapshot[k] = v
	}

	m.setDefaults()

	// Environment layer: DELIVER_APP, DELIVER_HOSTS, ...
	m.v.SetEnvPrefix("DELIVER")
	m.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	m.v.AutomaticEnv()

	// Project file is optional; absence is not an error.
	m.v.SetConfigFile(m.projectFile)
	m.v.SetConfigType("yaml")
	if err := m.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !isNotExist(err) {
			return fmt.Errorf("error reading project file %s: %w", m.projectFile, err)
		}
	}

	// Re-apply the snapshot so runtime values take final precedence.
	for k, v := range snapshot {
		m.v.Set(k, v)
	}

	return nil
}

// Load merges all layers and validates the result.
func (m *ViperManager) Load(overrides map[string]any) (*Config, error) {
	if err := m.merge(overrides); err != nil {
		return nil, err
	}

	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := m.validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate reports every problem in one pass rather than failing fast.
func (m *ViperManager) validate(cfg *Config) error {
	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(m.v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &errors.MissingRequiredConfigError{Keys: missing}
	}

	switch cfg.Mode {
	case ModeCompact, ModeVerbose, ModeDebug, ModeTest:
	default:
		return fmt.Errorf("invalid mode %q: must be one of compact, verbose, debug, test", cfg.Mode)
	}

	if cfg.SSHTimeout <= 0 {
		return fmt.Errorf("ssh-timeout must be positive, got %v", cfg.SSHTimeout)
	}

	return nil
}

// Check merges all layers and reports one result per checked key. Required
// keys fail when empty; optional keys always pass and show their effective
// value.
func (m *ViperManager) Check(overrides map[string]any) ([]CheckResult, error) {
	if err := m.merge(overrides); err != nil {
		return nil, err
	}

	results := make([]CheckResult, 0, len(requiredKeys)+len(optionalKeys))
	for _, key := range requiredKeys {
		value := strings.TrimSpace(m.v.GetString(key))
		results = append(results, CheckResult{
			Key:      key,
			Value:    value,
			Required: true,
			OK:       value != "",
		})
	}
	for _, key := range optionalKeys {
		results = append(results, CheckResult{
			Key:      key,
			Value:    m.v.GetString(key),
			Required: false,
			OK:       true,
		})
	}

	return results, nil
}

// isNotExist reports whether the config read failed only because the file
// is absent. Viper returns ConfigFileNotFoundError when searching paths,
// but a plain fs error when SetConfigFile names a missing file.
func isNotExist(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist)
}
