package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/spance/devicecheck/constants"
	"github.com/spance/devicecheck/readiness"
	"github.com/spance/devicecheck/readiness/u2"
)

// Config is the top-level configuration.
type Config struct {
	// Device is the address checked when none is given on the command line.
	Device          string        `yaml:"device,omitempty"`
	DefaultPort     int           `yaml:"default_port"`
	App             string        `yaml:"app"`
	StrategyTimeout time.Duration `yaml:"strategy_timeout"`
	StepTimeout     time.Duration `yaml:"step_timeout"`
	Settle          time.Duration `yaml:"settle"`
	GestureSettle   time.Duration `yaml:"gesture_settle"`
	Deadline        time.Duration `yaml:"deadline,omitempty"`
	ADBPath         string        `yaml:"adb_path"`
	ADBBackend      string        `yaml:"adb_backend"`
	HTTPPort        int           `yaml:"http_port"`
	History         bool          `yaml:"history"`
	HistoryDir      string        `yaml:"history_dir,omitempty"`
}

func Default() *Config {
	return &Config{
		DefaultPort:     constants.DefaultDevicePort,
		App:             constants.DefaultApp,
		StrategyTimeout: readiness.DefaultStrategyTimeout,
		StepTimeout:     readiness.DefaultStepTimeout,
		Settle:          readiness.DefaultSettle,
		GestureSettle:   readiness.DefaultGestureSettle,
		ADBPath:         constants.DefaultADBPath,
		ADBBackend:      constants.BackendExec,
		HTTPPort:        u2.DefaultPort,
		History:         true,
	}
}

// Dir returns the config directory path.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, constants.AppName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", constants.AppName)
}

func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads the config file at path (the default path when empty), then
// applies environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrap(err, "read config")
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Device = String(constants.EnvPrefix+"DEVICE", c.Device)
	c.DefaultPort = Int(constants.EnvPrefix+"DEFAULT_PORT", c.DefaultPort)
	c.App = String(constants.EnvPrefix+"APP", c.App)
	c.StrategyTimeout = Duration(constants.EnvPrefix+"STRATEGY_TIMEOUT", c.StrategyTimeout)
	c.StepTimeout = Duration(constants.EnvPrefix+"STEP_TIMEOUT", c.StepTimeout)
	c.Settle = Duration(constants.EnvPrefix+"SETTLE", c.Settle)
	c.GestureSettle = Duration(constants.EnvPrefix+"GESTURE_SETTLE", c.GestureSettle)
	c.Deadline = Duration(constants.EnvPrefix+"DEADLINE", c.Deadline)
	c.ADBPath = String(constants.EnvPrefix+"ADB_PATH", c.ADBPath)
	c.ADBBackend = String(constants.EnvPrefix+"ADB_BACKEND", c.ADBBackend)
	c.HTTPPort = Int(constants.EnvPrefix+"HTTP_PORT", c.HTTPPort)
	c.History = Bool(constants.EnvPrefix+"HISTORY", c.History)
	c.HistoryDir = String(constants.EnvPrefix+"HISTORY_DIR", c.HistoryDir)
}

func (c *Config) Validate() error {
	if c.DefaultPort < 1 || c.DefaultPort > 65535 {
		return errors.Errorf("default_port %d out of range", c.DefaultPort)
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return errors.Errorf("http_port %d out of range", c.HTTPPort)
	}
	if c.ADBBackend != constants.BackendExec && c.ADBBackend != constants.BackendServer {
		return errors.Errorf("adb_backend must be %q or %q, got %q",
			constants.BackendExec, constants.BackendServer, c.ADBBackend)
	}
	if c.StrategyTimeout <= 0 || c.StepTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.Settle < 0 || c.GestureSettle < 0 || c.Deadline < 0 {
		return errors.New("settle delays and deadline must not be negative")
	}
	return nil
}

// HistoryPath returns the directory holding the run history database.
func (c *Config) HistoryPath() string {
	if c.HistoryDir != "" {
		return c.HistoryDir
	}
	return Dir()
}
